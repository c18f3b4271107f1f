package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// RandR 1.3 added GetScreenResourcesCurrent and the primary output.
const (
	randrMajor = 1
	randrMinor = 3
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window
}

// NewConnection connects to the named X display and initializes RandR.
// An empty name uses $DISPLAY.
func NewConnection(displayName string) (*Connection, error) {
	xu, err := xgbutil.NewConnDisplay(displayName)
	if err != nil {
		return nil, err
	}

	if err := randr.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	ver, err := randr.QueryVersion(xu.Conn(), randrMajor, randrMinor).Reply()
	if err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr version query failed: %w", err)
	}
	if ver.MajorVersion < randrMajor || (ver.MajorVersion == randrMajor && ver.MinorVersion < randrMinor) {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr %d.%d is too old, need %d.%d", ver.MajorVersion, ver.MinorVersion, randrMajor, randrMinor)
	}

	return &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}, nil
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}

// GrabServer blocks other clients until UngrabServer.
func (c *Connection) GrabServer() error {
	return xproto.GrabServerChecked(c.XUtil.Conn()).Check()
}

func (c *Connection) UngrabServer() error {
	return xproto.UngrabServerChecked(c.XUtil.Conn()).Check()
}

// BitsPerPixel returns the framebuffer bits per pixel for the root depth.
// Depth 24 is stored in 32 bits, which is what other platforms report as the
// mode bit depth.
func (c *Connection) BitsPerPixel() uint32 {
	depth := c.XUtil.Screen().RootDepth
	for _, f := range c.XUtil.Setup().PixmapFormats {
		if f.Depth == depth {
			return uint32(f.BitsPerPixel)
		}
	}
	return uint32(depth)
}
