//go:build darwin

package platform

/*
#cgo CFLAGS: -Wno-deprecated-declarations
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation
#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>

static CFArrayRef copyAllModes(CGDirectDisplayID display) {
	return CGDisplayCopyAllDisplayModes(display, NULL);
}

static int arrayIsNull(CFArrayRef modes) {
	return modes == NULL;
}

static CGDisplayModeRef modeAt(CFArrayRef modes, CFIndex i) {
	return (CGDisplayModeRef)CFArrayGetValueAtIndex(modes, i);
}

static int modeIsNull(CGDisplayModeRef mode) {
	return mode == NULL;
}

static CGError configureMode(CGDisplayConfigRef config, CGDirectDisplayID display, CGDisplayModeRef mode) {
	return CGConfigureDisplayWithDisplayMode(config, display, mode, NULL);
}

static int encodingIs(CFStringRef enc, const char *name) {
	CFStringRef want = CFStringCreateWithCString(kCFAllocatorDefault, name, kCFStringEncodingASCII);
	int eq = CFStringCompare(enc, want, 0) == kCFCompareEqualTo;
	CFRelease(want);
	return eq;
}

// Pixel encodings from IOGraphicsTypes.h.
static uint32_t modeBitDepth(CGDisplayModeRef mode) {
	CFStringRef enc = CGDisplayModeCopyPixelEncoding(mode);
	uint32_t depth = 0;
	if (enc == NULL) {
		return 0;
	}
	if (encodingIs(enc, "--------RRRRRRRRGGGGGGGGBBBBBBBB")) {
		depth = 32;
	} else if (encodingIs(enc, "--RRRRRRRRRRGGGGGGGGGGBBBBBBBBBB")) {
		depth = 30;
	} else if (encodingIs(enc, "-RRRRRGGGGGBBBBB")) {
		depth = 16;
	} else if (encodingIs(enc, "PPPPPPPP")) {
		depth = 8;
	}
	CFRelease(enc);
	return depth;
}
*/
import "C"

import (
	"fmt"

	"github.com/1broseidon/modepin/internal/display"
)

const maxDisplays = 32

// DarwinBackend serves display.Service over Core Graphics.
type DarwinBackend struct {
	// modes holds retained references for every mode handed out by AllModes,
	// keyed by display and IODisplayModeID.
	modes map[display.ID]map[uint32]C.CGDisplayModeRef
}

var _ Backend = (*DarwinBackend)(nil)

func newBackend(Options) (Backend, error) {
	return &DarwinBackend{modes: make(map[display.ID]map[uint32]C.CGDisplayModeRef)}, nil
}

// Close releases retained display modes.
func (b *DarwinBackend) Close() error {
	for _, byID := range b.modes {
		for _, m := range byID {
			C.CGDisplayModeRelease(m)
		}
	}
	b.modes = make(map[display.ID]map[uint32]C.CGDisplayModeRef)
	return nil
}

func (b *DarwinBackend) ActiveDisplays() ([]display.ID, error) {
	ids := make([]C.CGDirectDisplayID, maxDisplays)
	var count C.uint32_t
	if rc := C.CGGetActiveDisplayList(C.uint32_t(maxDisplays), &ids[0], &count); rc != C.kCGErrorSuccess {
		return nil, fmt.Errorf("CGGetActiveDisplayList: %s", display.ErrorCode(rc))
	}
	out := make([]display.ID, 0, int(count))
	for i := 0; i < int(count); i++ {
		out = append(out, display.ID(ids[i]))
	}
	return out, nil
}

func (b *DarwinBackend) SerialNumber(id display.ID) uint32 {
	return uint32(C.CGDisplaySerialNumber(C.CGDirectDisplayID(id)))
}

func (b *DarwinBackend) IsMain(id display.ID) bool {
	return C.CGDisplayIsMain(C.CGDirectDisplayID(id)) != 0
}

func (b *DarwinBackend) CurrentMode(id display.ID) (display.Mode, bool) {
	m := C.CGDisplayCopyDisplayMode(C.CGDirectDisplayID(id))
	if C.modeIsNull(m) != 0 {
		return display.Mode{}, false
	}
	defer C.CGDisplayModeRelease(m)
	return toMode(m), true
}

func (b *DarwinBackend) AllModes(id display.ID) ([]display.Mode, error) {
	arr := C.copyAllModes(C.CGDirectDisplayID(id))
	if C.arrayIsNull(arr) != 0 {
		return nil, fmt.Errorf("display %d returned no mode list", id)
	}
	defer C.CFRelease(C.CFTypeRef(arr))

	byID := b.modes[id]
	if byID == nil {
		byID = make(map[uint32]C.CGDisplayModeRef)
		b.modes[id] = byID
	}

	n := int(C.CFArrayGetCount(arr))
	modes := make([]display.Mode, 0, n)
	for i := 0; i < n; i++ {
		m := C.modeAt(arr, C.CFIndex(i))
		mode := toMode(m)
		if prev, ok := byID[mode.ID]; ok {
			C.CGDisplayModeRelease(prev)
		}
		C.CGDisplayModeRetain(m)
		byID[mode.ID] = m
		modes = append(modes, mode)
	}
	return modes, nil
}

func (b *DarwinBackend) Describe(id display.ID) display.Info {
	did := C.CGDirectDisplayID(id)
	kind := "external"
	if C.CGDisplayIsBuiltin(did) != 0 {
		kind = "built-in"
	}
	info := display.Info{
		ID:     id,
		Name:   fmt.Sprintf("%s %04x:%04x", kind, uint32(C.CGDisplayVendorNumber(did)), uint32(C.CGDisplayModelNumber(did))),
		Serial: b.SerialNumber(id),
		Main:   b.IsMain(id),
	}
	if mode, ok := b.CurrentMode(id); ok {
		info.Current = &mode
	}
	return info
}

func toMode(m C.CGDisplayModeRef) display.Mode {
	return display.Mode{
		ID:          uint32(C.CGDisplayModeGetIODisplayModeID(m)),
		Width:       uint32(C.CGDisplayModeGetWidth(m)),
		Height:      uint32(C.CGDisplayModeGetHeight(m)),
		BitDepth:    uint32(C.modeBitDepth(m)),
		RefreshRate: float64(C.CGDisplayModeGetRefreshRate(m)),
	}
}

func (b *DarwinBackend) BeginConfiguration() (display.Transaction, error) {
	var cfg C.CGDisplayConfigRef
	if rc := C.CGBeginDisplayConfiguration(&cfg); rc != C.kCGErrorSuccess {
		return nil, &display.ConfigError{Step: display.StepBegin, Code: display.ErrorCode(rc)}
	}
	return &darwinTransaction{backend: b, cfg: cfg}, nil
}

type darwinTransaction struct {
	backend *DarwinBackend
	cfg     C.CGDisplayConfigRef
}

// ConfigureMode accepts only modes previously returned by AllModes.
func (t *darwinTransaction) ConfigureMode(id display.ID, mode display.Mode) error {
	ref, ok := t.backend.modes[id][mode.ID]
	if !ok {
		return &display.ConfigError{
			Step: display.StepApply,
			Code: display.CodeIllegalArgument,
			Err:  fmt.Errorf("mode %d was not enumerated for display %d", mode.ID, id),
		}
	}
	if rc := C.configureMode(t.cfg, C.CGDirectDisplayID(id), ref); rc != C.kCGErrorSuccess {
		return &display.ConfigError{Step: display.StepApply, Code: display.ErrorCode(rc)}
	}
	return nil
}

func (t *darwinTransaction) Complete(opt display.ConfigureOption) error {
	if rc := C.CGCompleteDisplayConfiguration(t.cfg, C.CGConfigureOption(opt)); rc != C.kCGErrorSuccess {
		return &display.ConfigError{Step: display.StepCommit, Code: display.ErrorCode(rc)}
	}
	return nil
}
