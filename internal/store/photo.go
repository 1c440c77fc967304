package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Photo catalog limits.
const (
	// MaxPhotos is the most photos kept; older ones are dropped first.
	MaxPhotos = 50
	// MaxBatch is the most photos taken from one upload; the rest are
	// dropped.
	MaxBatch = 30
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptySource is returned for a photo without a source.
	ErrEmptySource = errors.New("photo source is required")
)

// Photo is a reference to an image shown on the tree. The image itself
// stays with the renderer; Source is whatever it needs to load it.
type Photo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// PhotoRepository manages the photo catalog.
type PhotoRepository struct {
	db *sql.DB
}

// Photos returns the photo repository for this store.
func (s *Store) Photos() *PhotoRepository {
	return &PhotoRepository{db: s.db}
}

// Add appends the first MaxBatch photos of a batch and trims the catalog
// to the newest MaxPhotos. Missing IDs are generated. It returns the
// catalog size after trimming.
func (r *PhotoRepository) Add(photos []*Photo) (int, error) {
	if len(photos) > MaxBatch {
		photos = photos[:MaxBatch]
	}
	for _, p := range photos {
		if p.Source == "" {
			return 0, ErrEmptySource
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO photos (id, name, source, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range photos {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.CreatedAt = now
		if _, err := stmt.Exec(p.ID, p.Name, p.Source, p.CreatedAt); err != nil {
			return 0, err
		}
	}

	if _, err := tx.Exec(
		`DELETE FROM photos WHERE seq NOT IN (SELECT seq FROM photos ORDER BY seq DESC LIMIT ?)`,
		MaxPhotos,
	); err != nil {
		return 0, err
	}

	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM photos`).Scan(&n); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// List returns the catalog, oldest first.
func (r *PhotoRepository) List() ([]*Photo, error) {
	rows, err := r.db.Query(`SELECT id, name, source, created_at FROM photos ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []*Photo{}
	for rows.Next() {
		p := &Photo{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// Get returns a photo by ID.
func (r *PhotoRepository) Get(id string) (*Photo, error) {
	p := &Photo{}
	err := r.db.QueryRow(
		`SELECT id, name, source, created_at FROM photos WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Source, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Count returns the catalog size.
func (r *PhotoRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM photos`).Scan(&n)
	return n, err
}

// Delete removes one photo.
func (r *PhotoRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM photos WHERE id = ?`, id)
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

// Clear removes every photo and returns how many were removed.
func (r *PhotoRepository) Clear() (int, error) {
	result, err := r.db.Exec(`DELETE FROM photos`)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}
