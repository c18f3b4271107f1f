package config

import "fmt"

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BuildEffectiveConfig overlays raw onto the defaults and validates the result.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.Serial != nil {
		cfg.Serial = *raw.Serial
	}
	if raw.Target != nil {
		if raw.Target.Width != nil {
			cfg.Target.Width = *raw.Target.Width
		}
		if raw.Target.Height != nil {
			cfg.Target.Height = *raw.Target.Height
		}
		if raw.Target.BitDepth != nil {
			cfg.Target.BitDepth = *raw.Target.BitDepth
		}
		if raw.Target.RefreshRate != nil {
			cfg.Target.RefreshRate = *raw.Target.RefreshRate
		}
	}
	if raw.RefreshTolerance != nil {
		cfg.RefreshTolerance = *raw.RefreshTolerance
	}
	if raw.ExpectedDisplays != nil {
		cfg.ExpectedDisplays = *raw.ExpectedDisplays
	}
	if raw.ModeMatch != nil {
		cfg.ModeMatch = *raw.ModeMatch
	}
	if raw.Persistence != nil {
		cfg.Persistence = *raw.Persistence
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.XAuthority != nil {
		cfg.XAuthority = *raw.XAuthority
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
