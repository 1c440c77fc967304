// Package api provides HTTP API handlers for the photo catalog and scene
// presets of the evergreen service.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/evergreen/internal/store"
)

// Catalog is the part of the application the photo handler drives. Changes
// go through it so the scene runs its upload lifecycle.
type Catalog interface {
	AddPhotos(photos []*store.Photo) (int, error)
	DeletePhoto(id string) error
	ClearPhotos() (int, error)
	Store() *store.Store
}

// Presets is the part of the application the preset handler drives.
type Presets interface {
	SavePreset(name string) (*store.Preset, error)
	ApplyPreset(name string) (*store.Preset, error)
	Store() *store.Store
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// WriteJSON is writeJSON for the server package.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

// WriteError is writeError for the server package.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}
