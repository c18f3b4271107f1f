package config

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/1broseidon/modepin/internal/display"
)

// Built-in target: the home monitor at 1920x1080, 32 bpp, 60 Hz.
const (
	DefaultSerial           uint32  = 959853388
	DefaultWidth            uint32  = 1920
	DefaultHeight           uint32  = 1080
	DefaultBitDepth         uint32  = 32
	DefaultRefreshRate      float64 = 60
	DefaultExpectedDisplays         = 2
)

// Target is the mode the managed display must run at.
type Target struct {
	Width       uint32  `yaml:"width"`
	Height      uint32  `yaml:"height"`
	BitDepth    uint32  `yaml:"bit_depth"`
	RefreshRate float64 `yaml:"refresh_rate"`
}

// Config is the effective modepin configuration.
type Config struct {
	// Serial is the hardware serial number of the managed display.
	Serial uint32 `yaml:"serial"`
	Target Target `yaml:"target"`

	// RefreshTolerance allows |current - target| <= tolerance Hz.
	// 0 requires exact equality.
	RefreshTolerance float64 `yaml:"refresh_tolerance"`

	// ExpectedDisplays aborts unless exactly this many displays are active.
	// 0 disables the check.
	ExpectedDisplays int `yaml:"expected_displays"`

	// ModeMatch picks between several identical supported modes: first or last.
	ModeMatch string `yaml:"mode_match"`

	// Persistence of a committed change: app, session or permanent.
	Persistence string `yaml:"persistence"`

	LogLevel string `yaml:"log_level"`

	// X11 session selection; empty uses the process environment.
	Display    string `yaml:"display,omitempty"`
	XAuthority string `yaml:"xauthority,omitempty"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Serial: DefaultSerial,
		Target: Target{
			Width:       DefaultWidth,
			Height:      DefaultHeight,
			BitDepth:    DefaultBitDepth,
			RefreshRate: DefaultRefreshRate,
		},
		RefreshTolerance: 0,
		ExpectedDisplays: DefaultExpectedDisplays,
		ModeMatch:        string(display.MatchLast),
		Persistence:      display.Permanently.String(),
		LogLevel:         "info",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Displays without a readable serial report 0.
	if c.Serial == 0 {
		return &ValidationError{Path: "serial", Err: fmt.Errorf("serial must be non-zero")}
	}
	if c.Target.Width == 0 {
		return &ValidationError{Path: "target.width", Err: fmt.Errorf("target.width must be > 0")}
	}
	if c.Target.Height == 0 {
		return &ValidationError{Path: "target.height", Err: fmt.Errorf("target.height must be > 0")}
	}
	if c.Target.BitDepth == 0 {
		return &ValidationError{Path: "target.bit_depth", Err: fmt.Errorf("target.bit_depth must be > 0")}
	}
	if c.Target.RefreshRate < 0 || math.IsNaN(c.Target.RefreshRate) || math.IsInf(c.Target.RefreshRate, 0) {
		return &ValidationError{Path: "target.refresh_rate", Err: fmt.Errorf("target.refresh_rate must be a finite number >= 0")}
	}
	if c.RefreshTolerance < 0 || math.IsNaN(c.RefreshTolerance) || math.IsInf(c.RefreshTolerance, 0) {
		return &ValidationError{Path: "refresh_tolerance", Err: fmt.Errorf("refresh_tolerance must be a finite number >= 0")}
	}
	if c.ExpectedDisplays < 0 {
		return &ValidationError{Path: "expected_displays", Err: fmt.Errorf("expected_displays must be >= 0")}
	}
	switch display.MatchPolicy(c.ModeMatch) {
	case display.MatchFirst, display.MatchLast:
	default:
		return &ValidationError{Path: "mode_match", Err: fmt.Errorf("mode_match must be one of: first, last")}
	}
	if _, err := display.ParseConfigureOption(c.Persistence); err != nil {
		return &ValidationError{Path: "persistence", Err: fmt.Errorf("persistence must be one of: app, session, permanent")}
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return &ValidationError{Path: "log_level", Err: err}
	}
	return nil
}

// DisplayTarget returns the serial and mode the enforcer drives toward.
func (c *Config) DisplayTarget() display.Target {
	return display.Target{
		Serial:           c.Serial,
		Width:            c.Target.Width,
		Height:           c.Target.Height,
		BitDepth:         c.Target.BitDepth,
		RefreshRate:      c.Target.RefreshRate,
		RefreshTolerance: c.RefreshTolerance,
	}
}

// MatchPolicy returns the configured tie policy.
func (c *Config) MatchPolicy() display.MatchPolicy {
	return display.MatchPolicy(c.ModeMatch)
}

// ConfigureOption returns the configured commit persistence, defaulting to
// permanent for an invalid value.
func (c *Config) ConfigureOption() display.ConfigureOption {
	opt, err := display.ParseConfigureOption(c.Persistence)
	if err != nil {
		return display.Permanently
	}
	return opt
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	lvl, err := parseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
}
