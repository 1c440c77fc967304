// Package server provides the HTTP and WebSocket surface of the evergreen
// service.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/evergreen/internal/app"
	"github.com/ayusman/evergreen/internal/choreo"
	"github.com/ayusman/evergreen/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
}

// Server represents the HTTP server for the evergreen service.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if a := s.config.App; a != nil {
		s.mux.HandleFunc("/api/state", s.handleState)
		s.mux.HandleFunc("/api/mix", s.handleMix)
		s.mux.HandleFunc("/api/gesture", s.handleGesture)
		s.mux.Handle("/api/frames", NewFramesHandler(a))
		s.mux.Handle("/api/stream", NewStreamHandler(a.Camera()))

		photos := api.NewPhotoHandler(a)
		s.mux.Handle("/api/photos", photos)
		s.mux.Handle("/api/photos/", photos)

		presets := api.NewPresetHandler(a)
		s.mux.Handle("/api/presets", presets)
		s.mux.Handle("/api/presets/", presets)
	}

	// Serve the renderer if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["degraded"] = s.config.App.Status().Degraded
	}

	api.WriteJSON(w, http.StatusOK, response)
}

// handleState handles GET /api/state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	api.WriteJSON(w, http.StatusOK, s.config.App.Status())
}

// mixRequest sets the target mix or toggles it. Exactly one field is used.
type mixRequest struct {
	Target *float64 `json:"target"`
	Toggle bool     `json:"toggle"`
}

// handleMix handles POST /api/mix. The change is applied on the next tick.
func (s *Server) handleMix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req mixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var e choreo.Event
	switch {
	case req.Toggle && req.Target == nil:
		e = choreo.Event{Type: choreo.EventToggle}
	case !req.Toggle && req.Target != nil && (*req.Target == 0 || *req.Target == 1):
		e = choreo.Event{Type: choreo.EventSetTargetMix, Value: *req.Target}
	default:
		api.WriteError(w, http.StatusBadRequest, "expected target 0 or 1, or toggle")
		return
	}

	if err := s.config.App.Enqueue(e); err != nil {
		api.WriteError(w, enqueueStatus(err), err.Error())
		return
	}
	api.WriteJSON(w, http.StatusAccepted, map[string]string{"queued": string(e.Type)})
}

type gestureRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleGesture handles GET and PUT /api/gesture.
func (s *Server) handleGesture(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req gestureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			api.WriteError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		s.config.App.SetGestureEnabled(*req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.config.App.Status()
	api.WriteJSON(w, http.StatusOK, map[string]bool{
		"enabled":  st.GestureEnabled,
		"degraded": st.Degraded,
	})
}

func enqueueStatus(err error) int {
	if errors.Is(err, app.ErrQueueFull) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
