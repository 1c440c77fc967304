package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/evergreen/internal/app"
	"github.com/ayusman/evergreen/internal/placement"
	"github.com/ayusman/evergreen/internal/store"
)

// PresetHandler handles HTTP requests for scene presets.
type PresetHandler struct {
	presets Presets
}

// NewPresetHandler creates a new PresetHandler.
func NewPresetHandler(p Presets) *PresetHandler {
	return &PresetHandler{presets: p}
}

// ServeHTTP routes /api/presets, /api/presets/{name} and
// /api/presets/{name}/apply.
func (h *PresetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/presets")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.save(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if name, ok := strings.CutSuffix(path, "/apply"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.apply(w, r, name)
		return
	}

	name := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, name)
	case http.MethodDelete:
		h.delete(w, r, name)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// savePresetRequest stores the given groups when present and the current
// scene otherwise.
type savePresetRequest struct {
	Name      string                  `json:"name"`
	TargetMix *float64                `json:"targetMix"`
	Groups    []placement.GroupConfig `json:"groups"`
}

type listPresetsResponse struct {
	Presets []*store.Preset `json:"presets"`
}

// list handles GET /api/presets.
func (h *PresetHandler) list(w http.ResponseWriter, r *http.Request) {
	presets, err := h.presets.Store().Presets().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list presets")
		return
	}
	writeJSON(w, http.StatusOK, listPresetsResponse{Presets: presets})
}

// get handles GET /api/presets/{name}.
func (h *PresetHandler) get(w http.ResponseWriter, r *http.Request, name string) {
	p, err := h.presets.Store().Presets().Get(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get preset")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// save handles POST /api/presets.
func (h *PresetHandler) save(w http.ResponseWriter, r *http.Request) {
	var req savePresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	var (
		p   *store.Preset
		err error
	)
	if len(req.Groups) == 0 {
		p, err = h.presets.SavePreset(req.Name)
	} else {
		p = &store.Preset{Name: req.Name, TargetMix: 1, Groups: req.Groups}
		if req.TargetMix != nil {
			p.TargetMix = *req.TargetMix
		}
		err = h.presets.Store().Presets().Save(p)
	}
	if err != nil {
		if errors.Is(err, store.ErrInvalidPreset) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save preset")
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// apply handles POST /api/presets/{name}/apply.
func (h *PresetHandler) apply(w http.ResponseWriter, r *http.Request, name string) {
	p, err := h.presets.ApplyPreset(name)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Preset not found")
		case errors.Is(err, app.ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to apply preset")
		}
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// delete handles DELETE /api/presets/{name}.
func (h *PresetHandler) delete(w http.ResponseWriter, r *http.Request, name string) {
	if err := h.presets.Store().Presets().Delete(name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete preset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
