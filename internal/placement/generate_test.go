package placement

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
)

const epsilon = 1e-9

func TestGenerate_Deterministic(t *testing.T) {
	for _, typ := range GroupTypes() {
		t.Run(typ.String(), func(t *testing.T) {
			cfg := GroupConfig{ID: "g", Type: typ, Count: 40, Scale: 1, Seed: 7}

			a, err := Generate(cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			b, err := Generate(cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(a, b) {
				t.Error("expected identical particles for identical config")
			}
		})
	}
}

func TestGenerate_BallSixty(t *testing.T) {
	cfg := GroupConfig{ID: "balls", Type: Ball, Count: 60, Scale: 1, Seed: 1}

	a, _ := Generate(cfg)
	b, _ := Generate(cfg)

	if len(a) != 60 {
		t.Fatalf("expected 60 particles, got %d", len(a))
	}
	for i := range a {
		if a[i].FormedPosition != b[i].FormedPosition || a[i].ChaosPosition != b[i].ChaosPosition {
			t.Fatalf("particle %d differs between runs", i)
		}
	}
}

func TestGenerate_SeedChangesJitter(t *testing.T) {
	a, _ := Generate(GroupConfig{ID: "g", Type: Ball, Count: 10, Scale: 1, Seed: 1})
	b, _ := Generate(GroupConfig{ID: "g", Type: Ball, Count: 10, Scale: 1, Seed: 2})

	// Formed positions are fully deterministic in the index.
	for i := range a {
		if a[i].FormedPosition != b[i].FormedPosition {
			t.Errorf("particle %d: expected seed-independent formed position", i)
		}
	}
	if a[0].ChaosPosition == b[0].ChaosPosition {
		t.Error("expected chaos position to depend on seed")
	}
}

func TestGenerate_RadiusMonotonic(t *testing.T) {
	for _, count := range []int{1, 2, 7, 60, 500} {
		for _, typ := range []GroupType{Ball, Box, Star, Candy, Crystal, Photo} {
			particles, err := Generate(GroupConfig{ID: "g", Type: typ, Count: count, Scale: 1})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			prev := -1.0
			prevY := math.Inf(1)
			for i, p := range particles {
				r := math.Hypot(p.FormedPosition.X, p.FormedPosition.Z)
				if r < prev-epsilon {
					t.Fatalf("%s count %d: radius decreased at %d (%f < %f)", typ, count, i, r, prev)
				}
				if p.FormedPosition.Y > prevY+epsilon {
					t.Fatalf("%s count %d: height increased at %d", typ, count, i)
				}
				prev, prevY = r, p.FormedPosition.Y
			}
		}
	}
}

func TestGenerate_OrnamentGeometry(t *testing.T) {
	particles, _ := Generate(GroupConfig{ID: "g", Type: Ball, Count: 100, Scale: 1})

	last := particles[len(particles)-1]
	// progress 0.9: r = 6.75, y = -7.2, pushed out by 1.08
	r := math.Hypot(last.FormedPosition.X, last.FormedPosition.Z)
	if math.Abs(r-6.75*1.08) > 1e-6 {
		t.Errorf("expected base radius %f, got %f", 6.75*1.08, r)
	}
	if math.Abs(last.FormedPosition.Y-(-7.2*1.08)) > 1e-6 {
		t.Errorf("expected base height %f, got %f", -7.2*1.08, last.FormedPosition.Y)
	}

	for i, p := range particles {
		if p.ChaosPosition.Norm() > ornamentChaosRadius+epsilon {
			t.Errorf("particle %d: chaos position outside sphere", i)
		}
		if p.FormedScale.X < 0.8-epsilon || p.FormedScale.X > 1.2+epsilon {
			t.Errorf("particle %d: scale %f outside [0.8,1.2]", i, p.FormedScale.X)
		}
		if p.Rotation.Z != 0 || p.Rotation.X < 0 || p.Rotation.X > math.Pi {
			t.Errorf("particle %d: unexpected rotation %v", i, p.Rotation)
		}
		if p.ColorIndex < 0 || p.ColorIndex >= len(DefaultPalette(Ball)) {
			t.Errorf("particle %d: color index %d out of palette", i, p.ColorIndex)
		}
	}
}

func TestGenerate_TypePhaseOffset(t *testing.T) {
	ball, _ := Generate(GroupConfig{ID: "a", Type: Ball, Count: 5, Scale: 1})
	box, _ := Generate(GroupConfig{ID: "b", Type: Box, Count: 5, Scale: 1})

	a := math.Atan2(ball[0].FormedPosition.Z, ball[0].FormedPosition.X)
	b := math.Atan2(box[0].FormedPosition.Z, box[0].FormedPosition.X)
	if math.Abs(b-a-math.Pi/3) > 1e-9 {
		t.Errorf("expected BOX to be offset by π/3 from BALL, got %f", b-a)
	}
}

func TestGenerate_Photo(t *testing.T) {
	particles, _ := Generate(GroupConfig{ID: "photos", Type: Photo, Count: 10, Scale: 1})

	for i, p := range particles {
		wantTilt := float64(i%5-2) * 0.15
		if math.Abs(p.ChaosTilt-wantTilt) > epsilon {
			t.Errorf("particle %d: expected tilt %f, got %f", i, wantTilt, p.ChaosTilt)
		}

		r := math.Hypot(p.ChaosPosition.X, p.ChaosPosition.Z)
		if math.Abs(r-photoChaosRadius) > 1e-9 {
			t.Errorf("particle %d: expected chaos radius 18, got %f", i, r)
		}
		if math.Abs(p.ChaosPosition.Y) > photoChaosBand/2 {
			t.Errorf("particle %d: chaos y %f outside band", i, p.ChaosPosition.Y)
		}

		ratio := p.ChaosScale.X / p.FormedScale.X
		if ratio < 3.5-epsilon || ratio > 5+epsilon {
			t.Errorf("particle %d: chaos scale ratio %f outside [3.5,5]", i, ratio)
		}
	}
}

func TestGenerate_BoxAspect(t *testing.T) {
	particles, _ := Generate(GroupConfig{ID: "boxes", Type: Box, Count: 30, Scale: 1})

	for i, p := range particles {
		s := p.FormedScale
		if s.Y/s.X > 1.1/1.0+epsilon || s.Y/s.X < 0.7/1.3-epsilon {
			t.Errorf("particle %d: aspect out of range %v", i, s)
		}
	}
}

func TestGenerate_Foliage(t *testing.T) {
	particles, _ := Generate(GroupConfig{ID: "f", Type: Foliage, Count: 2000, Scale: 1, Seed: 3})

	var snowy int
	for i, p := range particles {
		if p.FormedPosition.Y < -ApexY-0.5-epsilon || p.FormedPosition.Y > ApexY+0.5+epsilon {
			t.Fatalf("needle %d: y %f outside tree", i, p.FormedPosition.Y)
		}
		if p.ChaosPosition.Norm() > foliageChaosRadius+epsilon {
			t.Fatalf("needle %d: chaos outside sphere", i)
		}
		if p.ColorIndex != -1 {
			t.Fatalf("needle %d: expected derived color", i)
		}
		if p.Random >= SnowThreshold {
			snowy++
		}
	}

	// About 15% of needles are snow-tipped.
	if snowy < 200 || snowy > 400 {
		t.Errorf("expected roughly 300 snow-tipped needles, got %d", snowy)
	}
}

func TestGenerate_SpiralLight(t *testing.T) {
	particles, _ := Generate(GroupConfig{ID: "s", Type: SpiralLight, Count: 300, Scale: 1})

	first := particles[0]
	if math.Abs(first.FormedPosition.X-8.0) > epsilon || math.Abs(first.FormedPosition.Y+9.5) > epsilon {
		t.Errorf("expected first light at (8, -9.5, 0), got %v", first.FormedPosition)
	}
	if math.Abs(first.FormedScale.X-SpiralLightScale) > epsilon {
		t.Errorf("expected scale 0.15, got %f", first.FormedScale.X)
	}
}

func TestGenerate_Snow(t *testing.T) {
	particles, _ := Generate(GroupConfig{ID: "snow", Type: Snow, Count: 500, Scale: 1})

	for i, p := range particles {
		if p.FormedPosition != p.ChaosPosition {
			t.Fatalf("flake %d: expected formed and chaos positions to match", i)
		}
		if math.Abs(p.FormedPosition.X) > SnowWidth/2 || math.Abs(p.FormedPosition.Y) > SnowHeight/2 || math.Abs(p.FormedPosition.Z) > SnowDepth/2 {
			t.Fatalf("flake %d: outside snow box %v", i, p.FormedPosition)
		}
		if p.Velocity.Y < 1 || p.Velocity.Y > 3 {
			t.Fatalf("flake %d: fall speed %f outside [1,3]", i, p.Velocity.Y)
		}
	}
}

func TestGenerate_TopStar(t *testing.T) {
	particles, _ := Generate(GroupConfig{ID: "top", Type: TopStar, Count: 5, Scale: 1})

	if len(particles) != 1 {
		t.Fatalf("expected exactly one top star, got %d", len(particles))
	}
	if particles[0].FormedPosition.Y != topStarFormedY || particles[0].ChaosPosition.Y != topStarChaosY {
		t.Errorf("unexpected top star positions %v / %v", particles[0].FormedPosition, particles[0].ChaosPosition)
	}
}

func TestGenerate_EmptyCount(t *testing.T) {
	for _, count := range []int{0, -3} {
		particles, err := Generate(GroupConfig{ID: "g", Type: Ball, Count: count, Scale: 1})
		if err != nil {
			t.Errorf("count %d: unexpected error: %v", count, err)
		}
		if len(particles) != 0 {
			t.Errorf("count %d: expected empty result, got %d", count, len(particles))
		}
	}
}

func TestGenerate_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  GroupConfig
		want error
	}{
		{"unknown type", GroupConfig{ID: "g", Type: GroupType(42), Count: 1, Scale: 1}, ErrUnknownGroupType},
		{"missing id", GroupConfig{Type: Ball, Count: 1, Scale: 1}, ErrInvalidConfig},
		{"zero scale", GroupConfig{ID: "g", Type: Ball, Count: 1}, ErrInvalidConfig},
		{"bad color", GroupConfig{ID: "g", Type: Ball, Count: 1, Scale: 1, Palette: []string{"#zzzzzz"}}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseGroupType(t *testing.T) {
	got, err := ParseGroupType("spiral_light")
	if err != nil || got != SpiralLight {
		t.Errorf("expected SPIRAL_LIGHT, got %v (%v)", got, err)
	}

	if _, err := ParseGroupType("TINSEL"); !errors.Is(err, ErrUnknownGroupType) {
		t.Errorf("expected ErrUnknownGroupType, got %v", err)
	}
}

func TestGroupConfig_JSON(t *testing.T) {
	var cfg GroupConfig
	if err := json.Unmarshal([]byte(`{"id":"x","type":"CRYSTAL","count":3,"scale":0.4}`), &cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Type != Crystal {
		t.Errorf("expected CRYSTAL, got %s", cfg.Type)
	}

	if err := json.Unmarshal([]byte(`{"type":"TINSEL"}`), &cfg); !errors.Is(err, ErrUnknownGroupType) {
		t.Errorf("expected ErrUnknownGroupType, got %v", err)
	}
}

func TestGroupConfig_Equal(t *testing.T) {
	a := GroupConfig{ID: "g", Type: Ball, Count: 3, Scale: 1, Palette: []string{"#fff"}}
	b := a
	b.Palette = []string{"#fff"}

	if !a.Equal(b) {
		t.Error("expected configs to be equal")
	}
	b.Count = 4
	if a.Equal(b) {
		t.Error("expected configs with different counts to differ")
	}
}
