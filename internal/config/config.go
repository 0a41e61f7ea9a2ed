// Package config loads PalmChef settings from PALMCHEF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ayusman/palmchef/internal/gesture"
	"github.com/ayusman/palmchef/internal/session"
)

// Prefix is prepended to every variable name.
const Prefix = "PALMCHEF_"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the process configuration.
type Config struct {
	// Stabilizer and classifier tuning.
	HistorySize   int           `env:"HISTORY_SIZE" envDefault:"6"`
	StableFor     time.Duration `env:"STABLE_FOR" envDefault:"300ms"`
	Cooldown      time.Duration `env:"COOLDOWN" envDefault:"900ms"`
	MinConfidence float64       `env:"MIN_CONFIDENCE" envDefault:"0.5"`
	Throttle      time.Duration `env:"THROTTLE" envDefault:"120ms"`
	Rearm         string        `env:"REARM" envDefault:"hold"`
	Thresholds    string        `env:"THRESHOLDS" envDefault:"clear"`

	Addr         string `env:"ADDR" envDefault:":8080"`
	DataDir      string `env:"DATA_DIR"`
	PluginDir    string `env:"PLUGIN_DIR"`
	BindingsFile string `env:"BINDINGS_FILE"`
	StaticDir    string `env:"STATIC_DIR"`

	// Local camera mode. A negative ID disables it.
	CameraID        int     `env:"CAMERA_ID" envDefault:"-1"`
	MotionThreshold float64 `env:"MOTION_THRESHOLD" envDefault:"1.0"`
	Steps           int     `env:"STEPS" envDefault:"0"`

	Tray   bool `env:"TRAY" envDefault:"false"`
	Notify bool `env:"NOTIFY" envDefault:"false"`
}

// Load parses the environment, fills path defaults below ~/.palmchef and
// validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".palmchef")
	}
	if cfg.PluginDir == "" {
		cfg.PluginDir = filepath.Join(cfg.DataDir, "plugins")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the tuning values.
func (c Config) Validate() error {
	if _, err := c.ThresholdSet(); err != nil {
		return err
	}
	if c.Throttle <= 0 {
		return fmt.Errorf("%w: throttle must be positive", ErrInvalid)
	}
	if c.Steps < 0 {
		return fmt.Errorf("%w: steps must not be negative", ErrInvalid)
	}
	if err := c.StabilizerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ThresholdSet resolves the THRESHOLDS tier name.
func (c Config) ThresholdSet() (gesture.Thresholds, error) {
	switch strings.ToLower(c.Thresholds) {
	case "clear", "":
		return gesture.DefaultThresholds(), nil
	case "loose":
		return gesture.LooseThresholds(), nil
	}
	return gesture.Thresholds{}, fmt.Errorf("%w: unknown threshold tier %q", ErrInvalid, c.Thresholds)
}

// StabilizerConfig returns the stabilizer part of the configuration.
func (c Config) StabilizerConfig() gesture.Config {
	return gesture.Config{
		HistorySize:   c.HistorySize,
		StableFor:     c.StableFor,
		Cooldown:      c.Cooldown,
		MinConfidence: c.MinConfidence,
		Rearm:         gesture.RearmPolicy(strings.ToLower(c.Rearm)),
	}
}

// Session returns a session configuration for the given input source.
func (c Config) Session(source string) session.Config {
	th, err := c.ThresholdSet()
	if err != nil {
		th = gesture.DefaultThresholds()
	}
	return session.Config{
		Stabilizer: c.StabilizerConfig(),
		Thresholds: th,
		Throttle:   c.Throttle,
		Source:     source,
	}
}

// DBPath is the SQLite file inside DataDir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "palmchef.db")
}

// CameraEnabled reports whether local camera mode is on.
func (c Config) CameraEnabled() bool {
	return c.CameraID >= 0
}
