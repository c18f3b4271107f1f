//go:build linux

package platform

import (
	"fmt"
	"os"
	"strings"

	"github.com/1broseidon/modepin/internal/display"
	"github.com/1broseidon/modepin/internal/x11"
	"github.com/BurntSushi/xgb/randr"
)

// LinuxBackend serves display.Service over X11 RandR.
type LinuxBackend struct {
	conn    *x11.Connection
	bpp     uint32
	res     *x11.Resources
	serials map[display.ID]uint32
}

var _ Backend = (*LinuxBackend)(nil)

func newBackend(opts Options) (Backend, error) {
	return NewLinuxBackend(opts)
}

// NewLinuxBackend opens a new X11 connection for the configured display.
func NewLinuxBackend(opts Options) (*LinuxBackend, error) {
	if xa := strings.TrimSpace(opts.XAuthority); xa != "" && os.Getenv("XAUTHORITY") == "" {
		if err := os.Setenv("XAUTHORITY", xa); err != nil {
			return nil, fmt.Errorf("failed to set XAUTHORITY: %w", err)
		}
	}
	conn, err := x11.NewConnection(strings.TrimSpace(opts.Display))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &LinuxBackend{
		conn:    conn,
		bpp:     conn.BitsPerPixel(),
		serials: make(map[display.ID]uint32),
	}, nil
}

// Close closes the underlying X11 connection.
func (b *LinuxBackend) Close() error {
	if b != nil && b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	return nil
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func (b *LinuxBackend) refresh() (*x11.Resources, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	res, err := conn.GetResources()
	if err != nil {
		return nil, err
	}
	b.res = res
	return res, nil
}

func (b *LinuxBackend) resources() (*x11.Resources, error) {
	if b.res != nil {
		return b.res, nil
	}
	return b.refresh()
}

func (b *LinuxBackend) output(id display.ID) (x11.Output, *x11.Resources, error) {
	res, err := b.resources()
	if err != nil {
		return x11.Output{}, nil, err
	}
	out, ok := res.Output(randr.Output(id))
	if !ok {
		return x11.Output{}, nil, fmt.Errorf("output %d is not connected", id)
	}
	return out, res, nil
}

// ActiveDisplays returns the connected outputs that are driven by a CRTC.
func (b *LinuxBackend) ActiveDisplays() ([]display.ID, error) {
	res, err := b.refresh()
	if err != nil {
		return nil, err
	}
	var ids []display.ID
	for _, o := range res.Outputs {
		if o.Active() {
			ids = append(ids, display.ID(o.ID))
		}
	}
	return ids, nil
}

// SerialNumber returns the EDID serial of the output, or 0 without EDID.
func (b *LinuxBackend) SerialNumber(id display.ID) uint32 {
	if serial, ok := b.serials[id]; ok {
		return serial
	}
	conn, err := b.connection()
	if err != nil {
		return 0
	}
	var serial uint32
	if edid, err := conn.EDID(randr.Output(id)); err == nil {
		serial, _ = x11.EDIDSerial(edid)
	}
	b.serials[id] = serial
	return serial
}

// IsMain reports whether the output is the RandR primary. Without a primary,
// the output whose CRTC sits at the origin is main.
func (b *LinuxBackend) IsMain(id display.ID) bool {
	out, res, err := b.output(id)
	if err != nil {
		return false
	}
	if res.Primary != 0 {
		return res.Primary == out.ID
	}
	if !out.Active() {
		return false
	}
	info, err := b.conn.CrtcInfo(out.Crtc, res.ConfigTimestamp)
	if err != nil {
		return false
	}
	return info.X == 0 && info.Y == 0
}

func (b *LinuxBackend) CurrentMode(id display.ID) (display.Mode, bool) {
	out, res, err := b.output(id)
	if err != nil || !out.Active() {
		return display.Mode{}, false
	}
	info, err := b.conn.CrtcInfo(out.Crtc, res.ConfigTimestamp)
	if err != nil || info.Mode == 0 {
		return display.Mode{}, false
	}
	mi, ok := res.Modes[info.Mode]
	if !ok {
		return display.Mode{}, false
	}
	return b.toMode(mi), true
}

// AllModes returns the modes the output advertises, in server order.
func (b *LinuxBackend) AllModes(id display.ID) ([]display.Mode, error) {
	out, res, err := b.output(id)
	if err != nil {
		return nil, err
	}
	modes := make([]display.Mode, 0, len(out.Modes))
	for _, mid := range out.Modes {
		mi, ok := res.Modes[mid]
		if !ok {
			continue
		}
		modes = append(modes, b.toMode(mi))
	}
	return modes, nil
}

// Describe returns report info for an output.
func (b *LinuxBackend) Describe(id display.ID) display.Info {
	info := display.Info{
		ID:     id,
		Name:   fmt.Sprintf("output-%d", id),
		Serial: b.SerialNumber(id),
		Main:   b.IsMain(id),
	}
	if out, _, err := b.output(id); err == nil && out.Name != "" {
		info.Name = out.Name
	}
	if mode, ok := b.CurrentMode(id); ok {
		info.Current = &mode
	}
	return info
}

func (b *LinuxBackend) toMode(mi randr.ModeInfo) display.Mode {
	return display.Mode{
		ID:          mi.Id,
		Width:       uint32(mi.Width),
		Height:      uint32(mi.Height),
		BitDepth:    b.bpp,
		RefreshRate: x11.RefreshRate(mi),
	}
}

// BeginConfiguration grabs the server so the configuration timestamp stays
// valid until Complete.
func (b *LinuxBackend) BeginConfiguration() (display.Transaction, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, &display.ConfigError{Step: display.StepBegin, Code: display.CodeInvalidConnection, Err: err}
	}
	res, err := b.refresh()
	if err != nil {
		return nil, &display.ConfigError{Step: display.StepBegin, Code: randrErrorCode(err), Err: err}
	}
	if err := conn.GrabServer(); err != nil {
		return nil, &display.ConfigError{Step: display.StepBegin, Code: randrErrorCode(err), Err: err}
	}
	return &linuxTransaction{backend: b, res: res, pending: make(map[randr.Crtc]randr.ModeInfo)}, nil
}

type linuxTransaction struct {
	backend *LinuxBackend
	res     *x11.Resources
	pending map[randr.Crtc]randr.ModeInfo
	closed  bool
}

func (t *linuxTransaction) release() {
	if t.closed {
		return
	}
	t.closed = true
	if t.backend.conn != nil {
		_ = t.backend.conn.UngrabServer()
	}
}

func (t *linuxTransaction) ConfigureMode(id display.ID, mode display.Mode) error {
	if t.closed {
		return &display.ConfigError{Step: display.StepApply, Code: display.CodeCannotComplete, Err: fmt.Errorf("transaction already finished")}
	}
	out, ok := t.res.Output(randr.Output(id))
	if !ok || !out.Active() {
		t.release()
		return &display.ConfigError{Step: display.StepApply, Code: display.CodeIllegalArgument, Err: fmt.Errorf("output %d is not active", id)}
	}
	for _, mid := range out.Modes {
		if uint32(mid) != mode.ID {
			continue
		}
		mi, ok := t.res.Modes[mid]
		if !ok {
			break
		}
		t.pending[out.Crtc] = mi
		return nil
	}
	t.release()
	return &display.ConfigError{Step: display.StepApply, Code: display.CodeRangeCheck, Err: fmt.Errorf("mode %d is not supported by output %s", mode.ID, out.Name)}
}

// Complete applies the pending CRTC modes. X11 keeps a configuration for the
// lifetime of the server whatever opt says.
func (t *linuxTransaction) Complete(opt display.ConfigureOption) error {
	if t.closed {
		return &display.ConfigError{Step: display.StepCommit, Code: display.CodeCannotComplete, Err: fmt.Errorf("transaction already finished")}
	}
	defer t.release()
	for crtc, mi := range t.pending {
		if err := t.backend.conn.SetCrtcMode(crtc, t.res.ConfigTimestamp, mi); err != nil {
			return &display.ConfigError{Step: display.StepCommit, Code: randrErrorCode(err), Err: err}
		}
	}
	t.backend.res = nil
	return nil
}
