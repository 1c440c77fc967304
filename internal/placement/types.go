// Package placement generates the formed (tree cone) and chaos (scattered
// cloud) positions of every particle in a decorative group. Generation is a
// pure function of the group configuration.
package placement

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
)

// Tree geometry shared by every strategy.
const (
	TreeHeight = 18.0
	BaseRadius = 7.5
	ApexY      = TreeHeight / 2
)

var (
	// ErrUnknownGroupType is returned for a type tag outside the fixed set.
	ErrUnknownGroupType = errors.New("unknown group type")

	// ErrInvalidConfig is returned when a group configuration fails validation.
	ErrInvalidConfig = errors.New("invalid group config")
)

// GroupType is the closed set of particle group kinds.
type GroupType int

const (
	Ball GroupType = iota
	Box
	Star
	Candy
	Crystal
	Photo
	Foliage
	SpiralLight
	Snow
	TopStar
)

var groupTypeNames = [...]string{
	Ball:        "BALL",
	Box:         "BOX",
	Star:        "STAR",
	Candy:       "CANDY",
	Crystal:     "CRYSTAL",
	Photo:       "PHOTO",
	Foliage:     "FOLIAGE",
	SpiralLight: "SPIRAL_LIGHT",
	Snow:        "SNOW",
	TopStar:     "TOP_STAR",
}

// GroupTypes lists every group type in declaration order.
func GroupTypes() []GroupType {
	types := make([]GroupType, len(groupTypeNames))
	for i := range types {
		types[i] = GroupType(i)
	}
	return types
}

// ParseGroupType converts an upper-case tag such as "SPIRAL_LIGHT" to a GroupType.
func ParseGroupType(s string) (GroupType, error) {
	tag := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range groupTypeNames {
		if name == tag {
			return GroupType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGroupType, s)
}

// Valid reports whether t is one of the declared group types.
func (t GroupType) Valid() bool {
	return t >= 0 && int(t) < len(groupTypeNames)
}

// String returns the upper-case tag.
func (t GroupType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("GroupType(%d)", int(t))
	}
	return groupTypeNames[t]
}

// IsOrnament reports whether t is placed with the golden-angle cone.
func (t GroupType) IsOrnament() bool {
	return t >= Ball && t <= Photo
}

// MarshalText implements encoding.TextMarshaler.
func (t GroupType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGroupType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *GroupType) UnmarshalText(text []byte) error {
	parsed, err := ParseGroupType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// GroupConfig describes one particle group. Two configs that are Equal
// generate identical particles.
type GroupConfig struct {
	ID      string    `toml:"id" json:"id"`
	Type    GroupType `toml:"type" json:"type"`
	Count   int       `toml:"count" json:"count"`
	Scale   float64   `toml:"scale" json:"scale"`
	Palette []string  `toml:"palette" json:"palette,omitempty"`
	Seed    uint64    `toml:"seed" json:"seed"`
}

// Validate checks the config before any placement work begins.
func (c GroupConfig) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("group %q: %w: %d", c.ID, ErrUnknownGroupType, int(c.Type))
	}
	if c.ID == "" {
		return fmt.Errorf("%w: group of type %s has no id", ErrInvalidConfig, c.Type)
	}
	if math.IsNaN(c.Scale) || math.IsInf(c.Scale, 0) || c.Scale <= 0 {
		return fmt.Errorf("%w: group %q: scale must be positive, got %v", ErrInvalidConfig, c.ID, c.Scale)
	}
	for _, hex := range c.Palette {
		if _, err := colorful.Hex(hex); err != nil {
			return fmt.Errorf("%w: group %q: palette color %q: %v", ErrInvalidConfig, c.ID, hex, err)
		}
	}
	return nil
}

// Equal reports whether two configs describe the same layout.
func (c GroupConfig) Equal(o GroupConfig) bool {
	return c.ID == o.ID && c.Type == o.Type && c.Count == o.Count &&
		c.Scale == o.Scale && c.Seed == o.Seed && slices.Equal(c.Palette, o.Palette)
}

// Particle is one generated element of a group. Vectors use the renderer's
// axes: y up, the tree trunk on the y axis.
type Particle struct {
	Index          int            `json:"index"`
	FormedPosition r3.Vector      `json:"formedPosition"`
	ChaosPosition  r3.Vector      `json:"chaosPosition"`
	FormedScale    r3.Vector      `json:"formedScale"`
	ChaosScale     r3.Vector      `json:"chaosScale"`
	Rotation       r3.Vector      `json:"rotation"`
	ChaosTilt      float64        `json:"chaosTilt"`
	ColorIndex     int            `json:"colorIndex"`
	Color          colorful.Color `json:"-"`
	Random         float64        `json:"random"`
	Velocity       r3.Vector      `json:"velocity"`
}

// Layout is a group config together with its generated particles.
type Layout struct {
	Config    GroupConfig
	Particles []Particle
}

// NewLayout generates the particles for cfg.
func NewLayout(cfg GroupConfig) (*Layout, error) {
	particles, err := Generate(cfg)
	if err != nil {
		return nil, err
	}
	return &Layout{Config: cfg, Particles: particles}, nil
}
