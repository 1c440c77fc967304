package placement

import (
	"math/rand/v2"

	"github.com/lucasb-eyer/go-colorful"
)

var defaultPalettes = map[GroupType][]string{
	Ball:        {"#8B0000", "#D32F2F", "#1B5E20", "#D4AF37", "#C0C0C0", "#191970"},
	Box:         {"#800000", "#1B5E20", "#D4AF37", "#FFFFFF", "#4B0082", "#2F4F4F", "#008080", "#8B4513", "#DC143C"},
	Star:        {"#FFD700", "#FDB931"},
	Crystal:     {"#F0F8FF", "#E0FFFF", "#B0E0E6"},
	Candy:       {"#FFFFFF"},
	Photo:       {"#FFFFFF"},
	Foliage:     {"#022b1c", "#217a46"},
	SpiralLight: {"#fffae0"},
	Snow:        {"#F2FAFF"},
	TopStar:     {"#FFD700"},
}

// DefaultPalette returns a copy of the built-in palette for t.
func DefaultPalette(t GroupType) []string {
	return append([]string(nil), defaultPalettes[t]...)
}

var white = colorful.Color{R: 1, G: 1, B: 1}

// snowTint is the color snow-tipped foliage needles blend toward.
var snowTint = colorful.Color{R: 0.95, G: 0.98, B: 1.0}

// palette is a parsed, non-empty list of colors.
type palette []colorful.Color

// parsePalette parses hex colors, falling back to the type's default palette
// and finally to white. Inputs are expected to have passed Validate.
func parsePalette(t GroupType, hexes []string) palette {
	if len(hexes) == 0 {
		hexes = defaultPalettes[t]
	}
	p := make(palette, 0, len(hexes))
	for _, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			continue
		}
		p = append(p, c)
	}
	if len(p) == 0 {
		p = append(p, white)
	}
	return p
}

// pick samples one color uniformly with replacement.
func (p palette) pick(rng *rand.Rand) (int, colorful.Color) {
	i := rng.IntN(len(p))
	return i, p[i]
}

// gradient returns the Lab blend between the first and last palette entries.
func (p palette) gradient(t float64) colorful.Color {
	return p[0].BlendLab(p[len(p)-1], t).Clamped()
}

func scaleColor(c colorful.Color, k float64) colorful.Color {
	return colorful.Color{R: c.R * k, G: c.G * k, B: c.B * k}.Clamped()
}
