// Package config holds the evergreen settings, their defaults and the
// optional TOML file that overrides them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ayusman/evergreen/internal/choreo"
	"github.com/ayusman/evergreen/internal/gesture"
	"github.com/ayusman/evergreen/internal/orientation"
	"github.com/ayusman/evergreen/internal/placement"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is the full application configuration.
type Config struct {
	Server      Server                  `toml:"server"`
	Tracking    Tracking                `toml:"tracking"`
	Store       Store                   `toml:"store"`
	Scene       Scene                   `toml:"scene"`
	Orientation orientation.Params      `toml:"orientation"`
	Groups      []placement.GroupConfig `toml:"groups"`
	Tray        Tray                    `toml:"tray"`
}

// Server configures the HTTP surface and the frame loop.
type Server struct {
	Addr      string `toml:"addr"`
	FrameRate int    `toml:"frame_rate"`
}

// Tracking configures the camera and hand tracker.
type Tracking struct {
	Enabled         bool    `toml:"enabled"`
	Device          int     `toml:"device"`
	PollMS          int     `toml:"poll_ms"`
	IdlePollMS      int     `toml:"idle_poll_ms"`
	MotionThreshold float64 `toml:"motion_threshold"`
	OpenAbove       float64 `toml:"open_above"`
	CloseBelow      float64 `toml:"close_below"`
	MissLimit       int     `toml:"miss_limit"`
	MinConfidence   float64 `toml:"min_confidence"`
}

// Store configures the SQLite database. An empty path keeps it in memory.
type Store struct {
	Path string `toml:"path"`
}

// Scene configures the choreographer.
type Scene struct {
	MorphRate         float64 `toml:"morph_rate"`
	InitialMix        float64 `toml:"initial_mix"`
	GestureXScale     float64 `toml:"gesture_x_scale"`
	PhotoPlaceholders int     `toml:"photo_placeholders"`
	PhotoLimit        int     `toml:"photo_limit"`
}

// Tray toggles the system tray icon.
type Tray struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	g := gesture.DefaultOptions()
	c := choreo.DefaultOptions()
	return Config{
		Server: Server{Addr: ":8080", FrameRate: 30},
		Tracking: Tracking{
			Enabled:         true,
			PollMS:          int(g.PollInterval / time.Millisecond),
			IdlePollMS:      200,
			MotionThreshold: 1.0,
			OpenAbove:       g.OpenAbove,
			CloseBelow:      g.CloseBelow,
			MissLimit:       g.MissLimit,
			MinConfidence:   0.5,
		},
		Scene: Scene{
			MorphRate:         c.MorphRate,
			InitialMix:        c.InitialMix,
			GestureXScale:     c.GestureXScale,
			PhotoPlaceholders: c.PhotoPlaceholders,
			PhotoLimit:        c.PhotoLimit,
		},
		Orientation: c.Orientation,
		Groups:      c.Groups,
	}
}

// Load reads a TOML file over the defaults. A missing path returns the
// defaults. Keys absent from the file keep their default values; a groups
// table in the file replaces the default group list entirely.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data into cfg and validates the result. Unknown keys
// are rejected.
func Parse(data []byte, cfg *Config) error {
	defaults := cfg.Groups
	cfg.Groups = nil

	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	err := dec.Decode(cfg)
	if cfg.Groups == nil {
		cfg.Groups = defaults
	}
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return cfg.Validate()
}

// Validate checks ranges and every group.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalid)
	}
	if c.Server.FrameRate < 1 || c.Server.FrameRate > 240 {
		return fmt.Errorf("%w: server.frame_rate must be in [1, 240], got %d", ErrInvalid, c.Server.FrameRate)
	}
	if c.Tracking.PollMS < 1 || c.Tracking.IdlePollMS < c.Tracking.PollMS {
		return fmt.Errorf("%w: tracking.poll_ms must be positive and not above idle_poll_ms", ErrInvalid)
	}
	if c.Tracking.CloseBelow >= c.Tracking.OpenAbove {
		return fmt.Errorf("%w: tracking.close_below (%v) must be below open_above (%v)",
			ErrInvalid, c.Tracking.CloseBelow, c.Tracking.OpenAbove)
	}
	if c.Tracking.MissLimit < 1 {
		return fmt.Errorf("%w: tracking.miss_limit must be positive", ErrInvalid)
	}
	if c.Scene.MorphRate <= 0 {
		return fmt.Errorf("%w: scene.morph_rate must be positive", ErrInvalid)
	}
	if c.Scene.InitialMix < 0 || c.Scene.InitialMix > 1 {
		return fmt.Errorf("%w: scene.initial_mix must be in [0, 1]", ErrInvalid)
	}
	if c.Orientation.ZoomMin <= 0 || c.Orientation.ZoomMin > c.Orientation.ZoomMax {
		return fmt.Errorf("%w: orientation zoom range [%v, %v]", ErrInvalid, c.Orientation.ZoomMin, c.Orientation.ZoomMax)
	}

	seen := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if seen[g.ID] {
			return fmt.Errorf("%w: duplicate group %q", ErrInvalid, g.ID)
		}
		seen[g.ID] = true
	}
	return nil
}

// GestureOptions returns the signal processor settings.
func (c Config) GestureOptions() gesture.Options {
	o := gesture.DefaultOptions()
	o.PollInterval = time.Duration(c.Tracking.PollMS) * time.Millisecond
	o.OpenAbove = c.Tracking.OpenAbove
	o.CloseBelow = c.Tracking.CloseBelow
	o.MissLimit = c.Tracking.MissLimit
	return o
}

// ChoreoOptions returns the choreographer settings.
func (c Config) ChoreoOptions() choreo.Options {
	o := choreo.DefaultOptions()
	o.Groups = c.Groups
	o.MorphRate = c.Scene.MorphRate
	o.InitialMix = c.Scene.InitialMix
	o.GestureXScale = c.Scene.GestureXScale
	o.PhotoPlaceholders = c.Scene.PhotoPlaceholders
	o.PhotoLimit = c.Scene.PhotoLimit
	o.Orientation = c.Orientation
	return o
}

// FrameInterval returns the frame loop period.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Server.FrameRate)
}

// Encode writes cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
