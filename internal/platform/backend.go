package platform

import (
	"errors"
	"runtime"

	"github.com/1broseidon/modepin/internal/display"
)

// Options selects the native display session.
type Options struct {
	// Display and XAuthority pick the X server on Linux. Other platforms
	// ignore them.
	Display    string
	XAuthority string
}

// Backend is the native display service of the running platform.
type Backend interface {
	display.Service
	display.Describer
	Close() error
}

// ErrUnsupported is returned by New on platforms without a backend.
var ErrUnsupported = errors.New("display mode configuration is not supported on " + runtime.GOOS)

// New opens the display service of the running platform.
func New(opts Options) (Backend, error) {
	return newBackend(opts)
}
