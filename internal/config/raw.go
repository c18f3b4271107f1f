package config

// RawTarget mirrors Target with optional fields.
type RawTarget struct {
	Width       *uint32  `yaml:"width"`
	Height      *uint32  `yaml:"height"`
	BitDepth    *uint32  `yaml:"bit_depth"`
	RefreshRate *float64 `yaml:"refresh_rate"`
}

// RawConfig is the file representation; nil fields keep the default.
type RawConfig struct {
	Serial           *uint32    `yaml:"serial"`
	Target           *RawTarget `yaml:"target"`
	RefreshTolerance *float64   `yaml:"refresh_tolerance"`
	ExpectedDisplays *int       `yaml:"expected_displays"`
	ModeMatch        *string    `yaml:"mode_match"`
	Persistence      *string    `yaml:"persistence"`
	LogLevel         *string    `yaml:"log_level"`
	Display          *string    `yaml:"display"`
	XAuthority       *string    `yaml:"xauthority"`
}
