package display

import "fmt"

// ID is an opaque display handle issued by the native display service.
type ID uint32

// Info describes an active display for reporting.
type Info struct {
	ID      ID
	Name    string
	Serial  uint32
	Main    bool
	Current *Mode
}

// Service abstracts the native display-management API.
type Service interface {
	// ActiveDisplays lists the displays currently driven by the system.
	ActiveDisplays() ([]ID, error)
	// SerialNumber returns the hardware serial of a display, or 0 when unknown.
	SerialNumber(id ID) uint32
	IsMain(id ID) bool
	// CurrentMode reports false when the display has no readable mode.
	CurrentMode(id ID) (Mode, bool)
	AllModes(id ID) ([]Mode, error)
	BeginConfiguration() (Transaction, error)
}

// Transaction is an open configuration change. Nothing is visible to the
// system until Complete succeeds.
type Transaction interface {
	ConfigureMode(id ID, mode Mode) error
	Complete(opt ConfigureOption) error
}

// Describer is implemented by services that can name their displays.
type Describer interface {
	Describe(id ID) Info
}

// Describe returns report info for id, using svc's Describer when available.
func Describe(svc Service, id ID) Info {
	if d, ok := svc.(Describer); ok {
		return d.Describe(id)
	}
	info := Info{
		ID:     id,
		Name:   fmt.Sprintf("display-%d", id),
		Serial: svc.SerialNumber(id),
		Main:   svc.IsMain(id),
	}
	if mode, ok := svc.CurrentMode(id); ok {
		info.Current = &mode
	}
	return info
}

// ConfigureOption selects how long a committed configuration lasts.
// Values follow CGConfigureOption.
type ConfigureOption int

const (
	ForAppOnly ConfigureOption = iota
	ForSession
	Permanently
)

func (o ConfigureOption) String() string {
	switch o {
	case ForAppOnly:
		return "app"
	case ForSession:
		return "session"
	case Permanently:
		return "permanent"
	default:
		return fmt.Sprintf("ConfigureOption(%d)", int(o))
	}
}

// ParseConfigureOption maps a config value (app, session, permanent) to an option.
func ParseConfigureOption(s string) (ConfigureOption, error) {
	switch s {
	case "app":
		return ForAppOnly, nil
	case "session":
		return ForSession, nil
	case "permanent":
		return Permanently, nil
	default:
		return 0, fmt.Errorf("unknown persistence %q (want app, session or permanent)", s)
	}
}
