package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/evergreen/internal/app"
	"github.com/ayusman/evergreen/internal/choreo"
)

const (
	writeWait   = 5 * time.Second
	maxEventLen = 4096
)

// ErrHostEvent is returned for an event kind that only the service itself
// may raise.
var ErrHostEvent = errors.New("event is not accepted from clients")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// FrameSource is the part of the application a renderer connection uses.
type FrameSource interface {
	Subscribe() (<-chan *choreo.Frame, func())
	Last() *choreo.Frame
	Enqueue(e choreo.Event) error
}

// FramesHandler streams scene frames to renderers over WebSocket and feeds
// their pointer and mix events back to the scene.
type FramesHandler struct {
	source FrameSource
}

// NewFramesHandler creates a new FramesHandler.
func NewFramesHandler(src FrameSource) *FramesHandler {
	return &FramesHandler{source: src}
}

// ServeHTTP handles WebSocket upgrade requests. The every query parameter
// sends only every Nth frame.
func (h *FramesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	every := 1
	if v := r.URL.Query().Get("every"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "every must be a positive integer", http.StatusBadRequest)
			return
		}
		every = n
	}

	// Subscribe before the handshake completes so no frame published after
	// the client connects is missed.
	frames, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxEventLen)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeFrames(conn, frames, every)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		e, err := decodeClientEvent(data)
		if err != nil {
			log.Printf("Ignoring client event: %v", err)
			continue
		}
		if err := h.source.Enqueue(e); err != nil {
			if errors.Is(err, app.ErrQueueFull) {
				log.Printf("Dropping %s event: %v", e.Type, err)
				continue
			}
			break
		}
	}

	unsubscribe()
	<-done
}

// writeFrames sends the latest frame, then every Nth published frame,
// until the subscription closes or a write fails.
func (h *FramesHandler) writeFrames(conn *websocket.Conn, frames <-chan *choreo.Frame, every int) {
	if f := h.source.Last(); f != nil {
		if err := writeFrame(conn, f); err != nil {
			return
		}
	}

	n := 0
	for f := range frames {
		n++
		if n%every != 0 {
			continue
		}
		if err := writeFrame(conn, f); err != nil {
			// Unblock the reader.
			conn.Close()
			for range frames {
			}
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f *choreo.Frame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

// decodeClientEvent parses a renderer message and rejects host-only kinds.
func decodeClientEvent(data []byte) (choreo.Event, error) {
	var e choreo.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return choreo.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if !e.Type.FromClient() {
		return choreo.Event{}, fmt.Errorf("%w: %q", ErrHostEvent, e.Type)
	}
	return e, nil
}
