package gesture

// Classification is the binary hand state derived from the openness ratio.
type Classification int

const (
	Closed Classification = iota
	Open
)

// String returns the classification name.
func (c Classification) String() string {
	if c == Open {
		return "OPEN"
	}
	return "CLOSED"
}

// Classifier turns an openness ratio into a Classification with hysteresis:
// it switches to Open only above OpenAbove and back to Closed only below
// CloseBelow. Values in between keep the current state.
type Classifier struct {
	OpenAbove  float64
	CloseBelow float64
	state      Classification
}

// NewClassifier creates a Classifier in the Closed state.
func NewClassifier(openAbove, closeBelow float64) *Classifier {
	return &Classifier{OpenAbove: openAbove, CloseBelow: closeBelow}
}

// Observe feeds one ratio and returns the resulting state.
func (c *Classifier) Observe(ratio float64) Classification {
	switch c.state {
	case Closed:
		if ratio > c.OpenAbove {
			c.state = Open
		}
	case Open:
		if ratio < c.CloseBelow {
			c.state = Closed
		}
	}
	return c.state
}

// State returns the current classification.
func (c *Classifier) State() Classification {
	return c.state
}

// Reset returns the classifier to Closed.
func (c *Classifier) Reset() {
	c.state = Closed
}
