package choreo

import (
	"errors"
	"fmt"

	"github.com/ayusman/evergreen/internal/gesture"
	"github.com/ayusman/evergreen/internal/placement"
)

// ErrUnknownEvent is returned for an event type the Choreographer does not handle.
var ErrUnknownEvent = errors.New("unknown event")

// EventKind names an input event.
type EventKind string

// Client event kinds, accepted from renderer connections.
const (
	EventSetTargetMix EventKind = "setTargetMix"
	EventToggle       EventKind = "toggle"
	EventPointerDown  EventKind = "pointerDown"
	EventPointerMove  EventKind = "pointerMove"
	EventPointerUp    EventKind = "pointerUp"
	EventTouch        EventKind = "touch"
	EventWheel        EventKind = "wheel"
	EventPinch        EventKind = "pinch"
)

// Host event kinds, raised by the application itself.
const (
	EventGesture          EventKind = "gesture"
	EventGestureAvailable EventKind = "gestureAvailable"
	EventUpload           EventKind = "upload"
	EventClearPhotos      EventKind = "clearPhotos"
	EventLifecycle        EventKind = "lifecycle"
	EventConfigure        EventKind = "configure"
)

// Event is one input to the Choreographer. Only the fields relevant to Type
// are read.
type Event struct {
	Type   EventKind `json:"type"`
	Value  float64   `json:"value,omitempty"`
	X      float64   `json:"x,omitempty"`
	Y      float64   `json:"y,omitempty"`
	Count  int       `json:"count,omitempty"`
	DeltaY float64   `json:"deltaY,omitempty"`
	Delta  float64   `json:"delta,omitempty"`

	Sample    gesture.Sample          `json:"-"`
	Available bool                    `json:"-"`
	Phase     Phase                   `json:"-"`
	Groups    []placement.GroupConfig `json:"-"`
}

// FromClient reports whether the event kind may be sent by a renderer.
func (k EventKind) FromClient() bool {
	switch k {
	case EventSetTargetMix, EventToggle, EventPointerDown, EventPointerMove,
		EventPointerUp, EventTouch, EventWheel, EventPinch:
		return true
	}
	return false
}

// Apply dispatches an event.
func (c *Choreographer) Apply(e Event) error {
	switch e.Type {
	case EventSetTargetMix:
		c.SetTargetMix(e.Value)
	case EventToggle:
		c.ToggleMix()
	case EventPointerDown:
		c.OnPointerDown(e.X, e.Y)
	case EventPointerMove:
		c.OnPointerMove(e.X, e.Y)
	case EventPointerUp:
		c.OnPointerUp()
	case EventTouch:
		c.OnTouch(e.Count)
	case EventWheel:
		c.OnWheel(e.DeltaY)
	case EventPinch:
		c.OnPinch(e.Delta)
	case EventGesture:
		c.OnGestureSample(e.Sample)
	case EventGestureAvailable:
		c.SetGestureAvailable(e.Available)
	case EventUpload:
		c.BeginPhotoUpload(e.Count)
	case EventClearPhotos:
		c.ClearPhotos()
	case EventLifecycle:
		c.OnUploadLifecycle(e.Phase)
	case EventConfigure:
		return c.Configure(e.Groups)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
	return nil
}
