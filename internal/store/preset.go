package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/evergreen/internal/placement"
)

// ErrInvalidPreset is returned for a preset that cannot be stored.
var ErrInvalidPreset = errors.New("invalid preset")

// Preset is a named scene: a group list and the target mix to settle on.
type Preset struct {
	Name      string                  `json:"name"`
	TargetMix float64                 `json:"targetMix"`
	Groups    []placement.GroupConfig `json:"groups"`
	CreatedAt time.Time               `json:"createdAt"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// Validate checks the name, the target and every group.
func (p *Preset) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPreset)
	}
	if p.TargetMix != 0 && p.TargetMix != 1 {
		return fmt.Errorf("%w: target mix must be 0 or 1, got %v", ErrInvalidPreset, p.TargetMix)
	}
	if len(p.Groups) == 0 {
		return fmt.Errorf("%w: no groups", ErrInvalidPreset)
	}
	for _, g := range p.Groups {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPreset, err)
		}
	}
	return nil
}

// PresetRepository manages scene presets.
type PresetRepository struct {
	db *sql.DB
}

// Presets returns the preset repository for this store.
func (s *Store) Presets() *PresetRepository {
	return &PresetRepository{db: s.db}
}

// Save inserts or replaces a preset by name. CreatedAt survives a replace.
func (r *PresetRepository) Save(p *Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}

	groups, err := json.Marshal(p.Groups)
	if err != nil {
		return err
	}

	now := time.Now()
	p.UpdatedAt = now
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	_, err = r.db.Exec(
		`INSERT INTO presets (name, target_mix, groups_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		 	target_mix = excluded.target_mix,
		 	groups_json = excluded.groups_json,
		 	updated_at = excluded.updated_at`,
		p.Name, p.TargetMix, string(groups), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// Get returns a preset by name.
func (r *PresetRepository) Get(name string) (*Preset, error) {
	row := r.db.QueryRow(
		`SELECT name, target_mix, groups_json, created_at, updated_at FROM presets WHERE name = ?`,
		name,
	)
	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns every preset ordered by name.
func (r *PresetRepository) List() ([]*Preset, error) {
	rows, err := r.db.Query(
		`SELECT name, target_mix, groups_json, created_at, updated_at FROM presets ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	presets := []*Preset{}
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	return presets, rows.Err()
}

// Delete removes a preset by name.
func (r *PresetRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM presets WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPreset(s scanner) (*Preset, error) {
	p := &Preset{}
	var groups string
	if err := s.Scan(&p.Name, &p.TargetMix, &groups, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(groups), &p.Groups); err != nil {
		return nil, fmt.Errorf("preset %q: %w", p.Name, err)
	}
	return p, nil
}
