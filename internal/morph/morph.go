// Package morph smooths the formed/chaos blend value toward its target.
package morph

import "math"

// DefaultRate is the smoothing rate in 1/s used when none is configured.
const DefaultRate = 5.0

// Controller holds the current mix: 0 is chaos, 1 is the formed tree.
// It is a small value type owned by its caller and updated in place.
type Controller struct {
	rate float64
	mix  float64
}

// New creates a Controller at the given mix. A non-positive rate uses
// DefaultRate.
func New(rate, initial float64) Controller {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		rate = DefaultRate
	}
	return Controller{rate: rate, mix: clamp(initial)}
}

// Update advances the mix toward target by one step of length dt (seconds)
// and returns the new mix. The step factor is capped at 1 so the mix never
// overshoots; negative or non-finite dt leaves the mix unchanged.
func (c *Controller) Update(dt, target float64) float64 {
	if c.rate == 0 {
		c.rate = DefaultRate
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return c.mix
	}
	target = clamp(target)
	k := math.Min(1, c.rate*dt)
	c.mix = clamp(c.mix + (target-c.mix)*k)
	return c.mix
}

// Mix returns the current value.
func (c *Controller) Mix() float64 {
	return c.mix
}

// Rate returns the smoothing rate.
func (c *Controller) Rate() float64 {
	return c.rate
}

// Set jumps the mix to v, clamped to [0,1].
func (c *Controller) Set(v float64) {
	c.mix = clamp(v)
}

// Settled reports whether the mix is within eps of target.
func (c *Controller) Settled(target, eps float64) bool {
	return math.Abs(c.mix-clamp(target)) <= eps
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
