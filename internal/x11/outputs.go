package x11

import (
	"encoding/binary"
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xprop"
)

// Output is a connected RandR output.
type Output struct {
	ID    randr.Output
	Name  string
	Crtc  randr.Crtc
	Modes []randr.Mode
}

// Active reports whether the output is currently driven by a CRTC.
func (o Output) Active() bool {
	return o.Crtc != 0
}

// Resources is one consistent view of the RandR configuration.
type Resources struct {
	ConfigTimestamp xproto.Timestamp
	Outputs         []Output
	Modes           map[randr.Mode]randr.ModeInfo
	Primary         randr.Output
}

// Output returns the output with the given id.
func (r *Resources) Output(id randr.Output) (Output, bool) {
	for _, o := range r.Outputs {
		if o.ID == id {
			return o, true
		}
	}
	return Output{}, false
}

// GetResources queries outputs, modes and the primary output.
func (c *Connection) GetResources() (*Resources, error) {
	conn := c.XUtil.Conn()
	resources, err := randr.GetScreenResourcesCurrent(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	res := &Resources{
		ConfigTimestamp: resources.ConfigTimestamp,
		Modes:           make(map[randr.Mode]randr.ModeInfo, len(resources.Modes)),
	}
	for _, mi := range resources.Modes {
		res.Modes[randr.Mode(mi.Id)] = mi
	}

	for _, id := range resources.Outputs {
		info, err := randr.GetOutputInfo(conn, id, resources.ConfigTimestamp).Reply()
		if err != nil {
			return nil, fmt.Errorf("failed to get output %d info: %w", id, err)
		}
		if info.Connection != randr.ConnectionConnected {
			continue
		}
		res.Outputs = append(res.Outputs, Output{
			ID:    id,
			Name:  string(info.Name),
			Crtc:  info.Crtc,
			Modes: info.Modes,
		})
	}

	primary, err := randr.GetOutputPrimary(conn, c.Root).Reply()
	if err == nil {
		res.Primary = primary.Output
	}
	return res, nil
}

// CrtcInfo returns the current state of a CRTC.
func (c *Connection) CrtcInfo(crtc randr.Crtc, ts xproto.Timestamp) (*randr.GetCrtcInfoReply, error) {
	info, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, ts).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get crtc %d info: %w", crtc, err)
	}
	return info, nil
}

// EDID returns the raw EDID block of an output.
func (c *Connection) EDID(output randr.Output) ([]byte, error) {
	atom, err := xprop.Atm(c.XUtil, "EDID")
	if err != nil {
		return nil, fmt.Errorf("failed to intern EDID atom: %w", err)
	}
	// 128 longs covers a base block plus three extensions.
	prop, err := randr.GetOutputProperty(c.XUtil.Conn(), output, atom, xproto.AtomAny, 0, 128, false, false).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to read EDID of output %d: %w", output, err)
	}
	if prop.Format != 8 || len(prop.Data) == 0 {
		return nil, fmt.Errorf("output %d has no EDID", output)
	}
	return prop.Data, nil
}

var edidHeader = [8]byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}

// EDIDSerial extracts the 32-bit ID serial number from an EDID base block.
func EDIDSerial(edid []byte) (uint32, bool) {
	if len(edid) < 16 {
		return 0, false
	}
	if [8]byte(edid[:8]) != edidHeader {
		return 0, false
	}
	return binary.LittleEndian.Uint32(edid[12:16]), true
}

// RefreshRate computes the vertical refresh in Hz of a mode line.
func RefreshRate(mi randr.ModeInfo) float64 {
	vtotal := float64(mi.Vtotal)
	if mi.ModeFlags&randr.ModeFlagDoubleScan != 0 {
		vtotal *= 2
	}
	if mi.ModeFlags&randr.ModeFlagInterlace != 0 {
		vtotal /= 2
	}
	if mi.Htotal == 0 || vtotal == 0 {
		return 0
	}
	return float64(mi.DotClock) / (float64(mi.Htotal) * vtotal)
}

// SetConfigStatusError is a non-success status from SetCrtcConfig or
// SetScreenConfig.
type SetConfigStatusError struct {
	Status byte
}

func (e *SetConfigStatusError) Error() string {
	switch e.Status {
	case randr.SetConfigInvalidConfigTime:
		return "randr: invalid config time"
	case randr.SetConfigInvalidTime:
		return "randr: invalid time"
	case randr.SetConfigFailed:
		return "randr: set config failed"
	default:
		return fmt.Sprintf("randr: set config status %d", e.Status)
	}
}

// SetCrtcMode drives crtc with mode, keeping its position, rotation and
// outputs. The root window is grown first when the new mode would not fit.
func (c *Connection) SetCrtcMode(crtc randr.Crtc, ts xproto.Timestamp, mode randr.ModeInfo) error {
	conn := c.XUtil.Conn()
	info, err := c.CrtcInfo(crtc, ts)
	if err != nil {
		return err
	}

	width, height := mode.Width, mode.Height
	if info.Rotation&(randr.RotationRotate90|randr.RotationRotate270) != 0 {
		width, height = height, width
	}
	if err := c.ensureScreenSize(int(info.X)+int(width), int(info.Y)+int(height)); err != nil {
		return err
	}

	reply, err := randr.SetCrtcConfig(conn, crtc, xproto.TimeCurrentTime, ts,
		info.X, info.Y, randr.Mode(mode.Id), info.Rotation, info.Outputs).Reply()
	if err != nil {
		return fmt.Errorf("failed to set crtc %d config: %w", crtc, err)
	}
	if reply.Status != randr.SetConfigSuccess {
		return &SetConfigStatusError{Status: reply.Status}
	}
	return nil
}

func (c *Connection) ensureScreenSize(needW, needH int) error {
	conn := c.XUtil.Conn()
	geom, err := xproto.GetGeometry(conn, xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return fmt.Errorf("failed to get root geometry: %w", err)
	}
	curW, curH := int(geom.Width), int(geom.Height)
	if needW <= curW && needH <= curH {
		return nil
	}

	newW := max(curW, needW)
	newH := max(curH, needH)
	// Keep the physical DPI the server reported at startup.
	scr := c.XUtil.Screen()
	mmW := uint32(newW) * uint32(scr.WidthInMillimeters) / uint32(max(1, int(scr.WidthInPixels)))
	mmH := uint32(newH) * uint32(scr.HeightInMillimeters) / uint32(max(1, int(scr.HeightInPixels)))

	if err := randr.SetScreenSizeChecked(conn, c.Root, uint16(newW), uint16(newH), mmW, mmH).Check(); err != nil {
		return fmt.Errorf("failed to grow screen to %dx%d: %w", newW, newH, err)
	}
	return nil
}
