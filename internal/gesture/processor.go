// Package gesture converts raw per-frame hand landmarks into a smoothed,
// debounced control signal: a screen position and an open/closed state.
package gesture

import (
	"math"
	"time"

	"github.com/golang/geo/r2"

	"github.com/ayusman/evergreen/internal/detector"
)

// Sample is the processed control signal for one poll cycle. Position is in
// normalized device coordinates, x mirrored so moving the hand right moves
// the point right, y up.
type Sample struct {
	Position r2.Point `json:"position"`
	Openness float64  `json:"openness"`
	Open     bool     `json:"open"`
	Detected bool     `json:"detected"`
}

// RawHandFrame is one result of the pose estimator. Hand is nil when no hand
// was found.
type RawHandFrame struct {
	Hand *detector.HandLandmarks
}

// FrameFromHands builds a RawHandFrame from a detector result, keeping only
// the first hand.
func FrameFromHands(hands []detector.HandLandmarks) RawHandFrame {
	if len(hands) == 0 {
		return RawHandFrame{}
	}
	h := hands[0]
	return RawHandFrame{Hand: &h}
}

// Clock supplies the time used for throttling.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configures a Processor.
type Options struct {
	// PollInterval is the minimum spacing between processed frames.
	PollInterval time.Duration

	// PositionWindow and OpennessWindow are the moving-average lengths.
	PositionWindow int
	OpennessWindow int

	// OpenAbove and CloseBelow are the hysteresis thresholds on the
	// smoothed openness ratio.
	OpenAbove  float64
	CloseBelow float64

	// MissLimit is the number of consecutive misses after which the hand
	// is declared lost.
	MissLimit int

	// Epsilon floors the knuckle distance in the openness ratio.
	Epsilon float64
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		PollInterval:   100 * time.Millisecond,
		PositionWindow: 8,
		OpennessWindow: 5,
		OpenAbove:      1.6,
		CloseBelow:     1.2,
		MissLimit:      5,
		Epsilon:        1e-6,
	}
}

// Processor smooths, classifies and debounces hand frames. It is not safe for
// concurrent use; the tracker loop owns it.
type Processor struct {
	opts       Options
	clock      Clock
	positions  *history[r2.Point]
	ratios     *history[float64]
	classifier *Classifier
	last       Sample
	lastAt     time.Time
	started    bool
	misses     int
}

// NewProcessor creates a Processor. A nil clock uses the system clock.
// Zero-valued options fall back to DefaultOptions field by field.
func NewProcessor(opts Options, clock Clock) *Processor {
	def := DefaultOptions()
	if opts.PollInterval < 0 {
		opts.PollInterval = 0
	}
	if opts.PositionWindow <= 0 {
		opts.PositionWindow = def.PositionWindow
	}
	if opts.OpennessWindow <= 0 {
		opts.OpennessWindow = def.OpennessWindow
	}
	if opts.OpenAbove == 0 && opts.CloseBelow == 0 {
		opts.OpenAbove, opts.CloseBelow = def.OpenAbove, def.CloseBelow
	}
	if opts.MissLimit <= 0 {
		opts.MissLimit = def.MissLimit
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = def.Epsilon
	}
	if clock == nil {
		clock = systemClock{}
	}

	return &Processor{
		opts:       opts,
		clock:      clock,
		positions:  newHistory[r2.Point](opts.PositionWindow),
		ratios:     newHistory[float64](opts.OpennessWindow),
		classifier: NewClassifier(opts.OpenAbove, opts.CloseBelow),
	}
}

// Process consumes one frame. It returns ok=false when the frame arrived
// within PollInterval of the previously processed one; such frames are
// dropped.
func (p *Processor) Process(frame RawHandFrame) (Sample, bool) {
	now := p.clock.Now()
	if p.started && now.Sub(p.lastAt) < p.opts.PollInterval {
		return Sample{}, false
	}
	p.started = true
	p.lastAt = now

	if !frame.Hand.Usable() {
		return p.miss(), true
	}
	p.misses = 0

	wrist := frame.Hand.Wrist()
	p.positions.push(r2.Point{X: -(2*wrist.X - 1), Y: -(2*wrist.Y - 1)})

	ratio := frame.Hand.Openness(p.opts.Epsilon)
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return p.miss(), true
	}
	p.ratios.push(ratio)

	smoothed := meanFloat(p.ratios)
	state := p.classifier.Observe(smoothed)

	p.last = Sample{
		Position: meanPoint(p.positions),
		Openness: smoothed,
		Open:     state == Open,
		Detected: true,
	}
	return p.last, true
}

func (p *Processor) miss() Sample {
	p.misses++
	if p.misses == p.opts.MissLimit {
		p.classifier.Reset()
		p.positions.clear()
		p.ratios.clear()
		p.last.Open = false
		p.last.Openness = 0
		p.last.Detected = false
	}
	return p.last
}

// Last returns the most recently emitted sample.
func (p *Processor) Last() Sample {
	return p.last
}

// Reset restores the initial state: empty histories, Closed, no pending
// throttle window.
func (p *Processor) Reset() {
	p.positions.clear()
	p.ratios.clear()
	p.classifier.Reset()
	p.last = Sample{}
	p.started = false
	p.misses = 0
}

func meanPoint(h *history[r2.Point]) r2.Point {
	var sum r2.Point
	h.each(func(v r2.Point) { sum = sum.Add(v) })
	if h.len() == 0 {
		return sum
	}
	return sum.Mul(1 / float64(h.len()))
}

func meanFloat(h *history[float64]) float64 {
	var sum float64
	h.each(func(v float64) { sum += v })
	if h.len() == 0 {
		return 0
	}
	return sum / float64(h.len())
}
