package choreo

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/ayusman/evergreen/internal/placement"
)

// pose carries the per-tick values shared by every particle transform.
type pose struct {
	mix      float64
	time     float64
	yaw      float64
	sin, cos float64
	camera   r3.Vector
	tumble   float64
	tumbling bool
	facing   bool
}

func lerp(a, b r3.Vector, t float64) r3.Vector {
	return a.Add(b.Sub(a).Mul(t))
}

// toWorld applies the scene yaw about the trunk axis.
func (ps *pose) toWorld(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: v.X*ps.cos + v.Z*ps.sin,
		Y: v.Y,
		Z: -v.X*ps.sin + v.Z*ps.cos,
	}
}

func (ps *pose) transform(id string, t placement.GroupType, p *placement.Particle, color string) Transform {
	local := lerp(p.ChaosPosition, p.FormedPosition, ps.mix)
	scale := lerp(p.ChaosScale, p.FormedScale, ps.mix)

	tr := Transform{Group: id, Index: p.Index, Scale: scale, Color: color}

	switch t {
	case placement.Snow:
		// Snow lives in camera space horizontally and ignores the scene yaw.
		tr.Position = ps.snowfall(p)
		return tr

	case placement.Foliage:
		breath := math.Sin(ps.time+local.Y*0.5) * 0.05 * ps.mix
		local.X += local.X * breath
		local.Z += local.Z * breath

	case placement.SpiralLight:
		pulse := 0.15 + 0.05*math.Sin(ps.time*3+float64(p.Index)*0.1)
		k := pulse * p.FormedScale.X / placement.SpiralLightScale
		tr.Scale = r3.Vector{X: k, Y: k, Z: k}

	case placement.TopStar:
		tilt := (1 - ps.mix) * 0.5
		tr.Rotation = r3.Vector{
			X: math.Cos(ps.time*0.8) * tilt,
			Y: ps.time * 0.5,
			Z: math.Sin(ps.time) * tilt,
		}

	case placement.Star, placement.Crystal:
		if ps.facing {
			tr.Rotation = r3.Vector{Y: math.Atan2(-local.X, -local.Z)}
			if t == placement.Star {
				tr.Rotation.Z = math.Pi / 2
			}
		} else {
			tr.Rotation = ps.tumbled(p.Rotation)
		}

	case placement.Photo:
		tilt := p.ChaosTilt * (1 - ps.mix)
		if ps.facing {
			tr.Rotation = r3.Vector{Y: math.Atan2(local.X, local.Z), Z: tilt}
		} else {
			// Faces the camera; computed directly in world space.
			world := ps.toWorld(local)
			d := ps.camera.Sub(world)
			tr.Position = world
			tr.Rotation = r3.Vector{
				X: math.Atan2(-d.Y, math.Hypot(d.X, d.Z)),
				Y: math.Atan2(d.X, d.Z),
				Z: tilt,
			}
			return tr
		}

	default:
		tr.Rotation = ps.tumbled(p.Rotation)
	}

	tr.Position = ps.toWorld(local)
	tr.Rotation.Y += ps.yaw
	return tr
}

// tumbled adds the accumulated chaos spin while the scene is scattered.
func (ps *pose) tumbled(rot r3.Vector) r3.Vector {
	if ps.tumbling {
		rot.X += ps.tumble
		rot.Y += ps.tumble
	}
	return rot
}

// snowfall wraps each flake vertically in [-15, 15) and drifts it sideways,
// wider while scattered.
func (ps *pose) snowfall(p *placement.Particle) r3.Vector {
	half := placement.SnowHeight / 2
	pos := p.FormedPosition

	pos.Y = math.Mod(pos.Y-ps.time*p.Velocity.Y+half, placement.SnowHeight)
	if pos.Y < 0 {
		pos.Y += placement.SnowHeight
	}
	pos.Y -= half

	pos.X += math.Sin(ps.time*p.Velocity.X+pos.Y) * (0.5 + (1-ps.mix)*2)
	pos.Z += math.Cos(ps.time*p.Velocity.Z+pos.X) * 0.5

	pos.X += ps.camera.X
	pos.Y += ps.camera.Y
	return pos
}
