package placement

import (
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"
)

// GoldenAngle is π(3−√5), the angular step between consecutive ornaments.
var GoldenAngle = math.Pi * (3 - math.Sqrt(5))

const (
	ornamentChaosRadius = 25.0
	foliageChaosRadius  = TreeHeight * 1.5
	spiralHeight        = 19.0
	spiralTurns         = 9.0
	spiralChaosRadius   = spiralHeight * 1.2
	SpiralLightScale    = 0.15

	photoChaosRadius = 18.0
	photoChaosBand   = 12.0

	topStarFormedY = 9.2
	topStarChaosY  = 13.0
)

// Snow volume, centered on the origin.
const (
	SnowWidth  = 50.0
	SnowHeight = 30.0
	SnowDepth  = 40.0
)

// SnowThreshold is the Random value at or above which a foliage needle is
// snow-tipped.
const SnowThreshold = 0.85

// Generate produces the particles for one group. The only error is a
// validation error, returned before any placement work. A non-positive
// count yields an empty slice.
func Generate(cfg GroupConfig) ([]Particle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Count <= 0 {
		return []Particle{}, nil
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(cfg.Type)+1))
	pal := parsePalette(cfg.Type, cfg.Palette)

	switch cfg.Type {
	case Foliage:
		return foliage(cfg, rng, pal), nil
	case SpiralLight:
		return spiralLights(cfg, rng, pal), nil
	case Snow:
		return snow(cfg, rng, pal), nil
	case TopStar:
		return topStar(cfg, pal), nil
	default:
		return ornaments(cfg, rng, pal), nil
	}
}

// ornaments places BALL, BOX, STAR, CANDY, CRYSTAL and PHOTO on a golden-angle
// spiral over the cone. progress runs from near 0 at the apex to 0.9 near the
// base with sqrt spacing so surface density stays even.
func ornaments(cfg GroupConfig, rng *rand.Rand, pal palette) []Particle {
	n := cfg.Count
	offset := float64(cfg.Type) * (2 * math.Pi / 6)

	push := 1.08
	if cfg.Type == Star || cfg.Type == Photo {
		push = 1.15
	}

	particles := make([]Particle, n)
	for i := range particles {
		progress := math.Sqrt(float64(i+1)/float64(n)) * 0.9
		r := progress * BaseRadius
		y := ApexY - progress*TreeHeight
		theta := float64(i)*GoldenAngle + offset

		p := Particle{
			Index:          i,
			FormedPosition: r3.Vector{X: r * math.Cos(theta), Y: y, Z: r * math.Sin(theta)}.Mul(push),
		}

		if cfg.Type == Photo {
			chaosTheta := float64(i) * GoldenAngle
			p.ChaosPosition = r3.Vector{
				X: photoChaosRadius * math.Cos(chaosTheta),
				Y: (float64(i)/float64(n) - 0.5) * photoChaosBand,
				Z: photoChaosRadius * math.Sin(chaosTheta),
			}
			p.ChaosTilt = float64(i%5-2) * 0.15
		} else {
			p.ChaosPosition = inSphere(rng, ornamentChaosRadius)
		}

		p.ColorIndex, p.Color = pal.pick(rng)

		k := cfg.Scale * uniform(rng, 0.8, 1.2)
		p.FormedScale = baseScale(cfg.Type, rng).Mul(k)
		p.ChaosScale = p.FormedScale
		if cfg.Type == Photo {
			p.ChaosScale = p.ChaosScale.Mul(uniform(rng, 3.5, 5.0))
		}

		p.Rotation = r3.Vector{X: rng.Float64() * math.Pi, Y: rng.Float64() * math.Pi}
		particles[i] = p
	}
	return particles
}

func baseScale(t GroupType, rng *rand.Rand) r3.Vector {
	switch t {
	case Candy, Star:
		return r3.Vector{X: 0.7, Y: 0.7, Z: 0.7}
	case Crystal:
		return r3.Vector{X: 0.6, Y: 0.6, Z: 0.6}
	case Box:
		return r3.Vector{
			X: uniform(rng, 1.0, 1.3),
			Y: uniform(rng, 0.7, 1.1),
			Z: uniform(rng, 1.0, 1.3),
		}
	default:
		return r3.Vector{X: 1, Y: 1, Z: 1}
	}
}

// foliage scatters needles over the cone surface with 1−√u spacing so the
// wide base gets proportionally more of them.
func foliage(cfg GroupConfig, rng *rand.Rand, pal palette) []Particle {
	particles := make([]Particle, cfg.Count)
	for i := range particles {
		random := rng.Float64()
		progress := 1 - math.Sqrt(rng.Float64())

		r := (1 - progress) * BaseRadius
		angle := rng.Float64() * 2 * math.Pi
		pos := r3.Vector{
			X: r*math.Cos(angle) + rng.Float64() - 0.5,
			Y: (progress-0.5)*TreeHeight + rng.Float64() - 0.5,
			Z: r*math.Sin(angle) + rng.Float64() - 0.5,
		}

		h := clamp01((pos.Y + ApexY) / TreeHeight)
		color := scaleColor(pal.gradient(h), 0.6+0.6*random)
		if random >= SnowThreshold {
			color = color.BlendRgb(snowTint, 0.9)
		}

		size := cfg.Scale * (0.6 + 0.8*random)
		particles[i] = Particle{
			Index:          i,
			FormedPosition: pos,
			ChaosPosition:  inSphere(rng, foliageChaosRadius),
			FormedScale:    r3.Vector{X: size, Y: size, Z: size},
			ChaosScale:     r3.Vector{X: size, Y: size, Z: size},
			ColorIndex:     -1,
			Color:          color,
			Random:         random,
		}
	}
	return particles
}

// spiralLights winds a garland of lights nine times around the cone.
func spiralLights(cfg GroupConfig, rng *rand.Rand, pal palette) []Particle {
	n := cfg.Count
	size := SpiralLightScale * cfg.Scale

	particles := make([]Particle, n)
	for i := range particles {
		t := float64(i) / float64(n)
		r := (1-t)*BaseRadius + 0.5
		angle := t * 2 * math.Pi * spiralTurns

		p := Particle{
			Index:          i,
			FormedPosition: r3.Vector{X: r * math.Cos(angle), Y: (t - 0.5) * spiralHeight, Z: r * math.Sin(angle)},
			ChaosPosition:  inSphere(rng, spiralChaosRadius),
			FormedScale:    r3.Vector{X: size, Y: size, Z: size},
			ChaosScale:     r3.Vector{X: size, Y: size, Z: size},
		}
		p.ColorIndex, p.Color = pal.pick(rng)
		particles[i] = p
	}
	return particles
}

// snow fills a box around the viewer. Flakes do not morph; Velocity holds
// the horizontal drift frequencies in X and Z and the fall speed in Y.
func snow(cfg GroupConfig, rng *rand.Rand, pal palette) []Particle {
	particles := make([]Particle, cfg.Count)
	for i := range particles {
		pos := r3.Vector{
			X: (rng.Float64() - 0.5) * SnowWidth,
			Y: (rng.Float64() - 0.5) * SnowHeight,
			Z: (rng.Float64() - 0.5) * SnowDepth,
		}
		size := uniform(rng, 1, 3) * cfg.Scale

		p := Particle{
			Index:          i,
			FormedPosition: pos,
			ChaosPosition:  pos,
			FormedScale:    r3.Vector{X: size, Y: size, Z: size},
			ChaosScale:     r3.Vector{X: size, Y: size, Z: size},
			Velocity: r3.Vector{
				X: uniform(rng, 0.2, 0.7),
				Y: uniform(rng, 1, 3),
				Z: uniform(rng, 0.2, 0.7),
			},
		}
		p.ColorIndex, p.Color = pal.pick(rng)
		particles[i] = p
	}
	return particles
}

// topStar is a single particle at the apex; any positive count yields one.
func topStar(cfg GroupConfig, pal palette) []Particle {
	s := cfg.Scale
	return []Particle{{
		FormedPosition: r3.Vector{Y: topStarFormedY},
		ChaosPosition:  r3.Vector{Y: topStarChaosY},
		FormedScale:    r3.Vector{X: s, Y: s, Z: s},
		ChaosScale:     r3.Vector{X: s, Y: s, Z: s},
		ColorIndex:     0,
		Color:          pal[0],
	}}
}

// inSphere returns a point uniformly distributed in the ball of radius r.
// cos φ is uniform so the poles are not oversampled and the cube root of
// the radius keeps the density even in volume.
func inSphere(rng *rand.Rand, r float64) r3.Vector {
	theta := rng.Float64() * 2 * math.Pi
	cosPhi := 2*rng.Float64() - 1
	sinPhi := math.Sqrt(1 - cosPhi*cosPhi)
	rad := r * math.Cbrt(rng.Float64())
	return r3.Vector{
		X: rad * sinPhi * math.Cos(theta),
		Y: rad * sinPhi * math.Sin(theta),
		Z: rad * cosPhi,
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
