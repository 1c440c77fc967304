package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/evergreen/internal/store"
)

// PhotoHandler handles HTTP requests for the photo catalog.
type PhotoHandler struct {
	catalog Catalog
}

// NewPhotoHandler creates a new PhotoHandler backed by the given catalog.
func NewPhotoHandler(c Catalog) *PhotoHandler {
	return &PhotoHandler{catalog: c}
}

// ServeHTTP routes /api/photos and /api/photos/{id}.
func (h *PhotoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/photos")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.add(w, r)
		case http.MethodDelete:
			h.clear(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type photoInput struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type addPhotosRequest struct {
	Photos []photoInput `json:"photos"`
}

type addPhotosResponse struct {
	Added  int            `json:"added"`
	Total  int            `json:"total"`
	Photos []*store.Photo `json:"photos"`
}

type listPhotosResponse struct {
	Photos []*store.Photo `json:"photos"`
	Limit  int            `json:"limit"`
}

type clearPhotosResponse struct {
	Removed int `json:"removed"`
}

// list handles GET /api/photos.
func (h *PhotoHandler) list(w http.ResponseWriter, r *http.Request) {
	photos, err := h.catalog.Store().Photos().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list photos")
		return
	}
	writeJSON(w, http.StatusOK, listPhotosResponse{Photos: photos, Limit: store.MaxPhotos})
}

// get handles GET /api/photos/{id}.
func (h *PhotoHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	photo, err := h.catalog.Store().Photos().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Photo not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get photo")
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

// add handles POST /api/photos with a batch of photo references.
func (h *PhotoHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addPhotosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Photos) == 0 {
		writeError(w, http.StatusBadRequest, "photos is required")
		return
	}

	if len(req.Photos) > store.MaxBatch {
		req.Photos = req.Photos[:store.MaxBatch]
	}

	photos := make([]*store.Photo, 0, len(req.Photos))
	for _, in := range req.Photos {
		photos = append(photos, &store.Photo{Name: in.Name, Source: in.Source})
	}

	total, err := h.catalog.AddPhotos(photos)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmptySource):
			writeError(w, http.StatusBadRequest, err.Error())
		case total > 0:
			// Stored, but the scene did not take the upload event.
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to add photos")
		}
		return
	}

	writeJSON(w, http.StatusCreated, addPhotosResponse{Added: len(photos), Total: total, Photos: photos})
}

// delete handles DELETE /api/photos/{id}.
func (h *PhotoHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.catalog.DeletePhoto(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Photo not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete photo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clear handles DELETE /api/photos.
func (h *PhotoHandler) clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.catalog.ClearPhotos()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear photos")
		return
	}
	writeJSON(w, http.StatusOK, clearPhotosResponse{Removed: n})
}
