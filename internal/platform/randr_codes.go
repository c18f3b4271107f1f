package platform

import (
	"errors"
	"io"
	"net"

	"github.com/1broseidon/modepin/internal/display"
	"github.com/1broseidon/modepin/internal/x11"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

// randrErrorCode maps X11 and RandR failures onto the display error table.
func randrErrorCode(err error) display.ErrorCode {
	if err == nil {
		return display.CodeSuccess
	}

	var status *x11.SetConfigStatusError
	if errors.As(err, &status) {
		switch status.Status {
		case randr.SetConfigInvalidConfigTime, randr.SetConfigInvalidTime:
			return display.CodeCannotComplete
		default:
			return display.CodeFailure
		}
	}

	var (
		valueErr  xproto.ValueError
		matchErr  xproto.MatchError
		accessErr xproto.AccessError
		implErr   xproto.ImplementationError
		crtcErr   randr.BadCrtcError
		modeErr   randr.BadModeError
		outputErr randr.BadOutputError
	)
	switch {
	case errors.As(err, &valueErr):
		return display.CodeRangeCheck
	case errors.As(err, &matchErr):
		return display.CodeTypeCheck
	case errors.As(err, &accessErr):
		return display.CodeInvalidContext
	case errors.As(err, &implErr):
		return display.CodeNotImplemented
	case errors.As(err, &crtcErr), errors.As(err, &modeErr), errors.As(err, &outputErr):
		return display.CodeNoneAvailable
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return display.CodeInvalidConnection
	default:
		return display.CodeFailure
	}
}
