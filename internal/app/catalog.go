package app

import (
	"fmt"
	"log"
	"math"
	"slices"

	"github.com/ayusman/evergreen/internal/choreo"
	"github.com/ayusman/evergreen/internal/placement"
	"github.com/ayusman/evergreen/internal/store"
)

// AddPhotos stores a batch of photo references and starts the upload
// lifecycle towards the new catalog size.
func (a *App) AddPhotos(photos []*store.Photo) (int, error) {
	n, err := a.store.Photos().Add(photos)
	if err != nil {
		return 0, err
	}
	if err := a.Enqueue(choreo.Event{Type: choreo.EventUpload, Count: n}); err != nil {
		return n, err
	}
	log.Printf("Added %d photos, %d in catalog", min(len(photos), store.MaxBatch), n)
	return n, nil
}

// DeletePhoto removes one photo and runs the upload lifecycle for the
// smaller catalog.
func (a *App) DeletePhoto(id string) error {
	if err := a.store.Photos().Delete(id); err != nil {
		return err
	}
	n, err := a.store.Photos().Count()
	if err != nil {
		return err
	}
	if n == 0 {
		return a.Enqueue(choreo.Event{Type: choreo.EventClearPhotos})
	}
	return a.Enqueue(choreo.Event{Type: choreo.EventUpload, Count: n})
}

// ClearPhotos empties the catalog and runs the clear lifecycle.
func (a *App) ClearPhotos() (int, error) {
	n, err := a.store.Photos().Clear()
	if err != nil {
		return 0, err
	}
	if err := a.Enqueue(choreo.Event{Type: choreo.EventClearPhotos}); err != nil {
		return n, err
	}
	log.Printf("Cleared %d photos", n)
	return n, nil
}

// SavePreset stores the active group list and current target under name.
func (a *App) SavePreset(name string) (*store.Preset, error) {
	target := math.Round(a.settings.Scene.InitialMix)
	if f := a.Last(); f != nil {
		target = f.TargetMix
	}
	p := &store.Preset{Name: name, TargetMix: target, Groups: a.Groups()}
	if err := a.store.Presets().Save(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyPreset reconfigures the scene from a stored preset. The groups are
// validated by the store, so the configure event is expected to succeed.
func (a *App) ApplyPreset(name string) (*store.Preset, error) {
	p, err := a.store.Presets().Get(name)
	if err != nil {
		return nil, err
	}
	if err := a.Enqueue(choreo.Event{Type: choreo.EventConfigure, Groups: p.Groups}); err != nil {
		return nil, err
	}
	if err := a.Enqueue(choreo.Event{Type: choreo.EventSetTargetMix, Value: p.TargetMix}); err != nil {
		return nil, err
	}
	if err := a.store.Settings().Set(store.SettingActivePreset, name); err != nil {
		return nil, fmt.Errorf("remember preset: %w", err)
	}
	log.Printf("Applied preset %q", name)
	return p, nil
}

// Reconfigure replaces the group list when it differs from the active one.
// It reports whether a configure event was queued.
func (a *App) Reconfigure(groups []placement.GroupConfig) (bool, error) {
	if slices.EqualFunc(a.Groups(), groups, placement.GroupConfig.Equal) {
		return false, nil
	}
	if err := a.Enqueue(choreo.Event{Type: choreo.EventConfigure, Groups: groups}); err != nil {
		return false, err
	}
	log.Printf("Reconfiguring scene with %d groups", len(groups))
	return true, nil
}
