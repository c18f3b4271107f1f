package display

import (
	"fmt"
	"math"
	"strconv"
)

// Mode is one (width, height, bit depth, refresh rate) combination a display
// can be driven at. ID is the native mode identifier.
type Mode struct {
	ID          uint32
	Width       uint32
	Height      uint32
	BitDepth    uint32
	RefreshRate float64
}

// String renders the mode as WIDTHxHEIGHTxDEPTH@RATE, e.g. 1920x1080x32@60.
func (m Mode) String() string {
	return fmt.Sprintf("%dx%dx%d@%s", m.Width, m.Height, m.BitDepth, strconv.FormatFloat(m.RefreshRate, 'f', -1, 64))
}

// Target is the mode a managed display must be driven at, plus the serial
// identifying that display.
type Target struct {
	Serial      uint32
	Width       uint32
	Height      uint32
	BitDepth    uint32
	RefreshRate float64

	// RefreshTolerance is the allowed absolute refresh difference in Hz.
	// Zero means exact equality.
	RefreshTolerance float64
}

// Mode returns the target tuple as a Mode (ID 0).
func (t Target) Mode() Mode {
	return Mode{Width: t.Width, Height: t.Height, BitDepth: t.BitDepth, RefreshRate: t.RefreshRate}
}

// Matches reports whether m has the target width, height, depth and refresh.
func (t Target) Matches(m Mode) bool {
	if m.Width != t.Width || m.Height != t.Height || m.BitDepth != t.BitDepth {
		return false
	}
	if t.RefreshTolerance <= 0 {
		return m.RefreshRate == t.RefreshRate
	}
	return math.Abs(m.RefreshRate-t.RefreshRate) <= t.RefreshTolerance
}

// MatchPolicy decides which of several matching modes wins.
type MatchPolicy string

const (
	MatchFirst MatchPolicy = "first"
	MatchLast  MatchPolicy = "last"
)

// Resolve scans modes for ones matching t. MatchFirst stops at the first hit;
// MatchLast scans the whole list and keeps the final hit.
func Resolve(modes []Mode, t Target, policy MatchPolicy) (Mode, bool) {
	var found Mode
	ok := false
	for _, m := range modes {
		if !t.Matches(m) {
			continue
		}
		found, ok = m, true
		if policy == MatchFirst {
			break
		}
	}
	return found, ok
}
