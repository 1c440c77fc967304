package capture

import "time"

// Poll intervals for the hand tracker: 10 Hz while someone is in view,
// 5 Hz when the scene is still.
const (
	ActiveInterval = 100 * time.Millisecond
	IdleInterval   = 200 * time.Millisecond
)

// Pacer picks the tracker poll interval from recent activity. A detected
// hand or camera motion switches to the active rate, which is held for
// Cooldown polls after the last activity.
type Pacer struct {
	Active   time.Duration
	Idle     time.Duration
	Cooldown int

	quiet int
}

// NewPacer returns a Pacer with the default rates and a cooldown of ten polls.
func NewPacer() *Pacer {
	return &Pacer{Active: ActiveInterval, Idle: IdleInterval, Cooldown: 10, quiet: 10}
}

// Observe records one poll and returns the interval until the next.
func (p *Pacer) Observe(motion, hand bool) time.Duration {
	if motion || hand {
		p.quiet = 0
	} else if p.quiet < p.Cooldown {
		p.quiet++
	}
	return p.Interval()
}

// Interval returns the current poll interval without recording a poll.
func (p *Pacer) Interval() time.Duration {
	if p.quiet < p.Cooldown {
		return p.Active
	}
	return p.Idle
}

// Reset returns to the idle rate.
func (p *Pacer) Reset() {
	p.quiet = p.Cooldown
}
