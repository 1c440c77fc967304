// Package choreo composes placement, morph and orientation into the per-tick
// particle transforms handed to the renderer.
package choreo

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/ayusman/evergreen/internal/gesture"
	"github.com/ayusman/evergreen/internal/morph"
	"github.com/ayusman/evergreen/internal/orientation"
	"github.com/ayusman/evergreen/internal/placement"
)

// ErrDuplicateGroup is returned when two groups share an ID.
var ErrDuplicateGroup = errors.New("duplicate group id")

// EulerOrder is the rotation order of every Transform.Rotation. Yaw is
// applied first so the scene yaw adds directly to the Y component.
const EulerOrder = "YXZ"

// Options configures a Choreographer.
type Options struct {
	Groups      []placement.GroupConfig
	MorphRate   float64
	InitialMix  float64
	Orientation orientation.Params

	// GestureXScale widens the hand's horizontal reach.
	GestureXScale float64

	// TumbleRate is the chaos-phase spin of tumbling ornaments in rad/s.
	TumbleRate float64

	// FaceThreshold is the mix above which stars, crystals and photos
	// face the trunk instead of tumbling.
	FaceThreshold float64

	// MaxStep caps dt so a stalled host cannot destabilize the smoothers.
	MaxStep float64

	// PhotoPlaceholders is the PHOTO count shown while no photos exist.
	PhotoPlaceholders int
	PhotoLimit        int
}

// DefaultOptions returns the standard scene with DefaultGroups.
func DefaultOptions() Options {
	return Options{
		Groups:            DefaultGroups(),
		MorphRate:         morph.DefaultRate,
		InitialMix:        1,
		Orientation:       orientation.DefaultParams(),
		GestureXScale:     1.2,
		TumbleRate:        0.5,
		FaceThreshold:     0.8,
		MaxStep:           0.1,
		PhotoPlaceholders: 10,
		PhotoLimit:        50,
	}
}

// DefaultGroups returns the standard tree: top star, foliage, a spiral light
// garland, five ornament kinds, the photo cloud and falling snow.
func DefaultGroups() []placement.GroupConfig {
	group := func(id string, t placement.GroupType, count int, scale float64) placement.GroupConfig {
		return placement.GroupConfig{
			ID:      id,
			Type:    t,
			Count:   count,
			Scale:   scale,
			Palette: placement.DefaultPalette(t),
			Seed:    1,
		}
	}
	return []placement.GroupConfig{
		group("top-star", placement.TopStar, 1, 1),
		group("foliage", placement.Foliage, 6000, 1),
		group("spiral-lights", placement.SpiralLight, 300, 1),
		group("balls", placement.Ball, 60, 0.5),
		group("boxes", placement.Box, 30, 0.6),
		group("stars", placement.Star, 25, 0.5),
		group("crystals", placement.Crystal, 40, 0.4),
		group("candy", placement.Candy, 40, 0.8),
		group("photos", placement.Photo, 10, 1),
		group("snow", placement.Snow, 1500, 1),
	}
}

// Transform is the renderer-facing state of one particle in world space.
type Transform struct {
	Group    string    `json:"group"`
	Index    int       `json:"index"`
	Position r3.Vector `json:"position"`
	Scale    r3.Vector `json:"scale"`
	Rotation r3.Vector `json:"rotation"`
	Color    string    `json:"color"`
}

// Frame is the output of one tick. Consumers must treat it as read-only.
type Frame struct {
	Seq         uint64            `json:"seq"`
	Time        float64           `json:"time"`
	Mix         float64           `json:"mix"`
	TargetMix   float64           `json:"targetMix"`
	RotationY   float64           `json:"rotationY"`
	Camera      r3.Vector         `json:"camera"`
	Orientation orientation.State `json:"orientation"`
	EulerOrder  string            `json:"eulerOrder"`
	Overlay     bool              `json:"overlay"`
	Degraded    bool              `json:"degraded"`
	Photos      int               `json:"photos"`
	Transforms  []Transform       `json:"transforms"`
}

type group struct {
	layout *placement.Layout
	colors []string
}

// Choreographer owns the scene. Every method must be called from a single
// goroutine.
type Choreographer struct {
	opts Options

	configs []placement.GroupConfig
	groups  map[string]*group

	morph     morph.Controller
	orient    *orientation.Controller
	targetMix float64
	timeline  Timeline

	handPos      r2.Point
	handDetected bool
	degraded     bool
	overlay      bool

	photos        int
	pendingPhotos int
	tumble        float64
	elapsed       float64
	seq           uint64
}

// New creates a Choreographer and generates every group's layout.
func New(opts Options) (*Choreographer, error) {
	def := DefaultOptions()
	if opts.GestureXScale == 0 {
		opts.GestureXScale = def.GestureXScale
	}
	if opts.FaceThreshold == 0 {
		opts.FaceThreshold = def.FaceThreshold
	}
	if opts.MaxStep <= 0 {
		opts.MaxStep = def.MaxStep
	}
	if opts.PhotoLimit <= 0 {
		opts.PhotoLimit = def.PhotoLimit
	}
	if opts.PhotoPlaceholders < 0 {
		opts.PhotoPlaceholders = 0
	}

	initial := clamp01(opts.InitialMix)
	c := &Choreographer{
		opts:      opts,
		groups:    make(map[string]*group),
		morph:     morph.New(opts.MorphRate, initial),
		orient:    orientation.New(opts.Orientation),
		targetMix: math.Round(initial),
	}
	if err := c.Configure(opts.Groups); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure replaces the group list. Every config is validated before any
// layout is generated; groups whose config is unchanged keep their layout.
func (c *Choreographer) Configure(configs []placement.GroupConfig) error {
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if seen[cfg.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateGroup, cfg.ID)
		}
		seen[cfg.ID] = true
	}

	next := make(map[string]*group, len(configs))
	for _, cfg := range configs {
		g, err := c.layoutFor(c.effective(cfg))
		if err != nil {
			return fmt.Errorf("group %q: %w", cfg.ID, err)
		}
		next[cfg.ID] = g
	}

	c.configs = append([]placement.GroupConfig(nil), configs...)
	c.groups = next
	return nil
}

// effective substitutes the live photo count into a PHOTO config.
func (c *Choreographer) effective(cfg placement.GroupConfig) placement.GroupConfig {
	if cfg.Type != placement.Photo {
		return cfg
	}
	cfg.Count = c.photos
	if cfg.Count == 0 {
		cfg.Count = c.opts.PhotoPlaceholders
	}
	return cfg
}

func (c *Choreographer) layoutFor(cfg placement.GroupConfig) (*group, error) {
	if g, ok := c.groups[cfg.ID]; ok && g.layout.Config.Equal(cfg) {
		return g, nil
	}

	layout, err := placement.NewLayout(cfg)
	if err != nil {
		return nil, err
	}

	g := &group{layout: layout, colors: make([]string, len(layout.Particles))}
	for i, p := range layout.Particles {
		if cfg.Type == placement.Candy {
			g.colors[i] = "#ffffff"
			continue
		}
		g.colors[i] = p.Color.Hex()
	}
	return g, nil
}

// regeneratePhotos rebuilds only the PHOTO groups after a photo count change.
func (c *Choreographer) regeneratePhotos() {
	for _, cfg := range c.configs {
		if cfg.Type != placement.Photo {
			continue
		}
		g, err := c.layoutFor(c.effective(cfg))
		if err != nil {
			// Configs were validated in Configure.
			continue
		}
		c.groups[cfg.ID] = g
	}
}

// Groups returns a copy of the configured groups.
func (c *Choreographer) Groups() []placement.GroupConfig {
	return append([]placement.GroupConfig(nil), c.configs...)
}

// Layout returns the cached layout of a group, or nil.
func (c *Choreographer) Layout(id string) *placement.Layout {
	if g, ok := c.groups[id]; ok {
		return g.layout
	}
	return nil
}

// SetTargetMix sets the morph target: 0 scatters, 1 forms the tree. Values
// are snapped to the nearer of the two.
func (c *Choreographer) SetTargetMix(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.targetMix = math.Round(clamp01(v))
}

// ToggleMix flips the morph target.
func (c *Choreographer) ToggleMix() {
	c.targetMix = 1 - c.targetMix
}

// TargetMix returns the current target.
func (c *Choreographer) TargetMix() float64 {
	return c.targetMix
}

// Mix returns the current blend value.
func (c *Choreographer) Mix() float64 {
	return c.morph.Mix()
}

// OnGestureSample routes a processed hand sample. An open hand scatters the
// tree, a closed one forms it; the hand position drives grab rotation.
// Undetected samples keep the last position so the scene does not jump.
func (c *Choreographer) OnGestureSample(s gesture.Sample) {
	if c.degraded {
		return
	}
	if !s.Detected {
		c.handDetected = false
		return
	}
	if s.Open {
		c.targetMix = 0
	} else {
		c.targetMix = 1
	}
	c.handPos = r2.Point{X: s.Position.X * c.opts.GestureXScale, Y: s.Position.Y}
	c.handDetected = true
}

// SetGestureAvailable enters or leaves degraded mode. While degraded,
// gesture samples are ignored and only pointer input steers the scene.
func (c *Choreographer) SetGestureAvailable(ok bool) {
	c.degraded = !ok
	if c.degraded {
		c.handDetected = false
	}
}

// Degraded reports whether gesture input is unavailable.
func (c *Choreographer) Degraded() bool {
	return c.degraded
}

func (c *Choreographer) OnPointerDown(x, y float64) { c.orient.PointerDown(x, y) }
func (c *Choreographer) OnPointerMove(x, y float64) { c.orient.PointerMove(x, y) }
func (c *Choreographer) OnPointerUp()               { c.orient.PointerUp() }
func (c *Choreographer) OnTouch(n int)              { c.orient.SetTouches(n) }
func (c *Choreographer) OnWheel(deltaY float64)     { c.orient.Wheel(deltaY) }
func (c *Choreographer) OnPinch(delta float64)      { c.orient.Pinch(delta) }

// BeginPhotoUpload runs the upload lifecycle towards a new total photo
// count, capped at PhotoLimit.
func (c *Choreographer) BeginPhotoUpload(total int) {
	c.pendingPhotos = min(max(total, 0), c.opts.PhotoLimit)
	c.timeline.Schedule(UploadSequence())
	c.applyDue(0)
}

// ClearPhotos runs the clear lifecycle. It does nothing when there are no
// photos.
func (c *Choreographer) ClearPhotos() {
	if c.photos == 0 && !c.timeline.Pending() {
		return
	}
	c.pendingPhotos = 0
	c.timeline.Schedule(ClearSequence())
	c.applyDue(0)
}

// CancelLifecycle drops any pending lifecycle steps and hides the overlay.
func (c *Choreographer) CancelLifecycle() {
	c.timeline.Cancel()
	c.overlay = false
}

// OnUploadLifecycle applies a single phase immediately.
func (c *Choreographer) OnUploadLifecycle(p Phase) {
	switch p {
	case Disperse:
		c.targetMix = 0
	case ShowOverlay:
		c.overlay = true
	case DataSwap:
		if c.pendingPhotos != c.photos {
			c.photos = c.pendingPhotos
			c.regeneratePhotos()
		}
	case HideOverlay:
		c.overlay = false
	case Reform:
		c.targetMix = 1
	}
}

// Photos returns the number of real photos in the scene.
func (c *Choreographer) Photos() int {
	return c.photos
}

// SetPhotoCount applies a photo count without running the lifecycle, for
// restoring a catalog at startup.
func (c *Choreographer) SetPhotoCount(n int) {
	n = min(max(n, 0), c.opts.PhotoLimit)
	c.pendingPhotos = n
	if n != c.photos {
		c.photos = n
		c.regeneratePhotos()
	}
}

func (c *Choreographer) applyDue(dt time.Duration) {
	for _, p := range c.timeline.Advance(dt) {
		c.OnUploadLifecycle(p)
	}
}

// Orientation returns the orientation snapshot.
func (c *Choreographer) Orientation() orientation.State {
	return c.orient.State()
}

// Tick advances the scene by dt seconds, clamped to [0, MaxStep], and
// returns the frame. Transforms are ordered by group then particle index.
func (c *Choreographer) Tick(dt float64) Frame {
	if !(dt > 0) {
		dt = 0
	}
	dt = math.Min(dt, c.opts.MaxStep)

	c.elapsed += dt
	c.applyDue(time.Duration(dt * float64(time.Second)))

	mix := c.morph.Update(dt, c.targetMix)
	c.orient.Update(dt, orientation.Input{Position: c.handPos, Detected: c.handDetected && !c.degraded})
	if mix < 0.5 {
		c.tumble += c.opts.TumbleRate * dt
	}
	c.seq++

	state := c.orient.State()
	frame := Frame{
		Seq:         c.seq,
		Time:        c.elapsed,
		Mix:         mix,
		TargetMix:   c.targetMix,
		RotationY:   state.RotationY,
		Camera:      state.Camera,
		Orientation: state,
		EulerOrder:  EulerOrder,
		Overlay:     c.overlay,
		Degraded:    c.degraded,
		Photos:      c.photos,
	}

	total := 0
	for _, cfg := range c.configs {
		total += len(c.groups[cfg.ID].layout.Particles)
	}
	frame.Transforms = make([]Transform, 0, total)

	ps := pose{
		mix:      mix,
		time:     c.elapsed,
		camera:   state.Camera,
		tumble:   c.tumble,
		tumbling: mix < 0.5,
		facing:   mix > c.opts.FaceThreshold,
		sin:      math.Sin(state.RotationY),
		cos:      math.Cos(state.RotationY),
		yaw:      state.RotationY,
	}
	for _, cfg := range c.configs {
		g := c.groups[cfg.ID]
		for i := range g.layout.Particles {
			frame.Transforms = append(frame.Transforms, ps.transform(cfg.ID, cfg.Type, &g.layout.Particles[i], g.colors[i]))
		}
	}
	return frame
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
