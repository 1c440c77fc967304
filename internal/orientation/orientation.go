// Package orientation drives the scene's yaw, zoom and camera from pointer,
// touch, wheel and hand-gesture input.
//
// Control follows a fixed priority: a detected hand (Grabbed) overrides a
// pointer drag (Dragging), which overrides inertial auto-spin (IdleSpin).
package orientation

import (
	"fmt"
	"math"

	"github.com/charmbracelet/harmonica"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Mode is the active control mode.
type Mode int

const (
	IdleSpin Mode = iota
	Dragging
	Grabbed
)

func (m Mode) String() string {
	switch m {
	case Dragging:
		return "DRAGGING"
	case Grabbed:
		return "GRABBED"
	default:
		return "IDLE_SPIN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	for _, v := range []Mode{IdleSpin, Dragging, Grabbed} {
		if v.String() == string(text) {
			*m = v
			return nil
		}
	}
	return fmt.Errorf("unknown orientation mode %q", text)
}

// Params holds the tuning constants. Rates are per second unless noted.
type Params struct {
	// BaseSpin is the idle auto-spin in radians per tick.
	BaseSpin  float64 `toml:"base_spin"`
	IdleRelax float64 `toml:"idle_relax"`

	// DragFactor is radians per pointer pixel; GrabFactor radians per
	// NDC unit of hand x.
	DragFactor        float64 `toml:"drag_factor"`
	GrabFactor        float64 `toml:"grab_factor"`
	GrabSmoothing     float64 `toml:"grab_smoothing"`
	ParallaxSmoothing float64 `toml:"parallax_smoothing"`
	CameraSmoothing   float64 `toml:"camera_smoothing"`
	ZoomMin           float64 `toml:"zoom_min"`
	ZoomMax           float64 `toml:"zoom_max"`
	ZoomDefault       float64 `toml:"zoom_default"`
	WheelFactor       float64 `toml:"wheel_factor"`
	PinchFactor       float64 `toml:"pinch_factor"`

	// StallEpsilon is the release velocity below which auto-spin restarts.
	StallEpsilon  float64 `toml:"stall_epsilon"`
	ZoomFrequency float64 `toml:"zoom_frequency"`
	ZoomDamping   float64 `toml:"zoom_damping"`
}

// DefaultParams returns the standard tuning.
func DefaultParams() Params {
	return Params{
		BaseSpin:          0.002,
		IdleRelax:         0.5,
		DragFactor:        0.005,
		GrabFactor:        math.Pi * 1.2,
		GrabSmoothing:     6.0,
		ParallaxSmoothing: 4.0,
		CameraSmoothing:   4.0,
		ZoomMin:           12,
		ZoomMax:           55,
		ZoomDefault:       32,
		WheelFactor:       0.02,
		PinchFactor:       0.15,
		StallEpsilon:      1e-4,
		ZoomFrequency:     6.0,
		ZoomDamping:       1.0,
	}
}

// Input is the per-tick control position in normalized device coordinates
// and whether a hand currently holds the scene.
type Input struct {
	Position r2.Point
	Detected bool
}

// State is a read-only snapshot of the controller.
type State struct {
	Mode       Mode      `json:"mode"`
	RotationY  float64   `json:"rotationY"`
	Velocity   float64   `json:"velocity"`
	ZoomTarget float64   `json:"zoomTarget"`
	Distance   float64   `json:"distance"`
	Parallax   r2.Point  `json:"parallax"`
	Camera     r3.Vector `json:"camera"`
	GrabOffset float64   `json:"grabOffset"`
	Touches    int       `json:"touches"`
}

// Controller owns the orientation state. It is not safe for concurrent use.
type Controller struct {
	p Params

	rotation    float64
	velocity    float64
	dragging    bool
	lastPointer float64
	grabbed     bool
	grabOffset  float64
	touches     int

	zoomTarget  float64
	distance    float64
	distanceVel float64
	parallax    r2.Point
	camera      r3.Vector
}

// New creates a Controller spinning slowly at the default zoom.
func New(p Params) *Controller {
	if p.ZoomMax < p.ZoomMin {
		p.ZoomMin, p.ZoomMax = p.ZoomMax, p.ZoomMin
	}
	zoom := clamp(p.ZoomDefault, p.ZoomMin, p.ZoomMax)
	return &Controller{
		p:          p,
		velocity:   p.BaseSpin,
		zoomTarget: zoom,
		distance:   zoom,
		camera:     r3.Vector{Z: zoom},
	}
}

// Mode returns the active control mode.
func (c *Controller) Mode() Mode {
	switch {
	case c.grabbed:
		return Grabbed
	case c.dragging:
		return Dragging
	default:
		return IdleSpin
	}
}

// Rotation returns the current yaw in radians. It is unbounded.
func (c *Controller) Rotation() float64 {
	return c.rotation
}

// State returns a snapshot.
func (c *Controller) State() State {
	return State{
		Mode:       c.Mode(),
		RotationY:  c.rotation,
		Velocity:   c.velocity,
		ZoomTarget: c.zoomTarget,
		Distance:   c.distance,
		Parallax:   c.parallax,
		Camera:     c.camera,
		GrabOffset: c.grabOffset,
		Touches:    c.touches,
	}
}

// maxDragStep bounds the rotation of a single pointer move, in radians.
const maxDragStep = math.Pi

// PointerDown starts a drag at screen x. Auto-spin stops. A drag started
// while a hand holds the scene takes over once the hand is released.
func (c *Controller) PointerDown(x, y float64) {
	if !finite(x) {
		return
	}
	c.dragging = true
	c.lastPointer = x
	c.velocity = 0
}

// PointerMove rotates by the horizontal delta since the last event. The
// delta also becomes the inertial velocity. Ignored unless dragging, while
// two or more touches are active, or while grabbed.
func (c *Controller) PointerMove(x, y float64) {
	if !c.dragging || c.touches >= 2 || !finite(x) {
		return
	}
	delta := x - c.lastPointer
	if !finite(delta) {
		return
	}
	c.lastPointer = x
	if c.grabbed {
		return
	}
	amount := clamp(delta*c.p.DragFactor, -maxDragStep, maxDragStep)
	c.rotation += amount
	c.velocity = amount
}

// PointerUp ends a drag; the last drag velocity carries on as inertia.
func (c *Controller) PointerUp() {
	c.dragging = false
}

// SetTouches records the number of active touch points.
func (c *Controller) SetTouches(n int) {
	if n < 0 {
		n = 0
	}
	c.touches = n
}

// Wheel adjusts the zoom target by a wheel delta.
func (c *Controller) Wheel(deltaY float64) {
	c.setZoom(c.zoomTarget + deltaY*c.p.WheelFactor)
}

// Pinch adjusts the zoom target by a pinch delta, the previous finger
// distance minus the current one: pinching in zooms out.
func (c *Controller) Pinch(delta float64) {
	c.setZoom(c.zoomTarget + delta*c.p.PinchFactor)
}

func (c *Controller) setZoom(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.zoomTarget = clamp(v, c.p.ZoomMin, c.p.ZoomMax)
}

// Update advances one tick of dt seconds.
func (c *Controller) Update(dt float64, in Input) {
	if !(dt >= 0) {
		dt = 0
	}

	if finite(in.Position.X) && finite(in.Position.Y) {
		c.parallax = lerp2(c.parallax, in.Position, math.Min(1, c.p.ParallaxSmoothing*dt))
	}

	if dt > 0 {
		spring := harmonica.NewSpring(dt, c.p.ZoomFrequency, c.p.ZoomDamping)
		c.distance, c.distanceVel = spring.Update(c.distance, c.distanceVel, c.zoomTarget)
	}

	target := r3.Vector{
		X: c.parallax.X * 4,
		Y: c.parallax.Y * 2,
		Z: c.distance + math.Abs(c.parallax.X)*2,
	}
	c.camera = c.camera.Add(target.Sub(c.camera).Mul(math.Min(1, c.p.CameraSmoothing*dt)))

	if in.Detected {
		c.updateGrab(dt)
		return
	}

	if c.grabbed {
		c.grabbed = false
		if math.Abs(c.velocity) < c.p.StallEpsilon {
			c.velocity = c.p.BaseSpin
		}
	}

	if !c.dragging {
		c.rotation += c.velocity
		c.velocity += (c.p.BaseSpin - c.velocity) * math.Min(1, c.p.IdleRelax*dt)
	}

	if !finite(c.rotation) || !finite(c.velocity) {
		c.rotation = 0
		c.velocity = c.p.BaseSpin
	}
}

func (c *Controller) updateGrab(dt float64) {
	hand := c.parallax.X * c.p.GrabFactor
	if !c.grabbed {
		c.grabbed = true
		c.grabOffset = c.rotation - hand
		c.velocity = 0
	}

	prev := c.rotation
	target := hand + c.grabOffset
	c.rotation = prev + (target-prev)*math.Min(1, c.p.GrabSmoothing*dt)
	c.velocity = c.rotation - prev
}

func lerp2(a, b r2.Point, t float64) r2.Point {
	return a.Add(b.Sub(a).Mul(t))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
