package config

import (
	"fmt"
	"strings"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths:
//
//	serial
//	target
//	target.width
//	target.height
//	target.bit_depth
//	target.refresh_rate
//	refresh_tolerance
//	expected_displays
//	mode_match
//	persistence
//	log_level
//	display
//	xauthority
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	if parts[0] == "target" {
		if len(parts) == 1 {
			return cfg.Target, nil
		}
		if len(parts) != 2 {
			return nil, fmt.Errorf("unsupported path: %s", path)
		}
		switch parts[1] {
		case "width":
			return cfg.Target.Width, nil
		case "height":
			return cfg.Target.Height, nil
		case "bit_depth":
			return cfg.Target.BitDepth, nil
		case "refresh_rate":
			return cfg.Target.RefreshRate, nil
		default:
			return nil, fmt.Errorf("unknown target field: %s", parts[1])
		}
	}

	if len(parts) != 1 {
		return nil, fmt.Errorf("unsupported path: %s", path)
	}
	switch parts[0] {
	case "serial":
		return cfg.Serial, nil
	case "refresh_tolerance":
		return cfg.RefreshTolerance, nil
	case "expected_displays":
		return cfg.ExpectedDisplays, nil
	case "mode_match":
		return cfg.ModeMatch, nil
	case "persistence":
		return cfg.Persistence, nil
	case "log_level":
		return cfg.LogLevel, nil
	case "display":
		return cfg.Display, nil
	case "xauthority":
		return cfg.XAuthority, nil
	default:
		return nil, fmt.Errorf("unknown config path: %s", path)
	}
}
