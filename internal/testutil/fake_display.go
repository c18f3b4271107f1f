package testutil

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/1broseidon/modepin/internal/display"
)

// FakeDisplay is one display served by FakeService.
type FakeDisplay struct {
	ID      display.ID
	Serial  uint32
	Main    bool
	Current *display.Mode
	Modes   []display.Mode
	// ModesErr makes AllModes fail for this display.
	ModesErr error
}

// FakeService is an in-memory display.Service that records every call.
type FakeService struct {
	mu sync.Mutex

	Displays   []*FakeDisplay
	ListErr    error
	BeginErr   error
	ApplyErr   error
	CommitErr  error
	Calls      []string
	Configured map[display.ID]display.Mode
	Option     display.ConfigureOption
}

var _ display.Service = (*FakeService)(nil)

// NewFakeService returns a service serving the given displays in order.
func NewFakeService(displays ...*FakeDisplay) *FakeService {
	return &FakeService{
		Displays:   displays,
		Configured: make(map[display.ID]display.Mode),
	}
}

func (f *FakeService) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
}

func (f *FakeService) find(id display.ID) *FakeDisplay {
	for _, d := range f.Displays {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// ConfigCalls returns only the begin/apply/commit calls, in order.
func (f *FakeService) ConfigCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Calls {
		if strings.HasPrefix(c, "begin") || strings.HasPrefix(c, "apply") || strings.HasPrefix(c, "commit") {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeService) ActiveDisplays() ([]display.ID, error) {
	f.record("list")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	ids := make([]display.ID, 0, len(f.Displays))
	for _, d := range f.Displays {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (f *FakeService) SerialNumber(id display.ID) uint32 {
	f.record("serial %d", id)
	if d := f.find(id); d != nil {
		return d.Serial
	}
	return 0
}

func (f *FakeService) IsMain(id display.ID) bool {
	f.record("main %d", id)
	if d := f.find(id); d != nil {
		return d.Main
	}
	return false
}

func (f *FakeService) CurrentMode(id display.ID) (display.Mode, bool) {
	f.record("mode %d", id)
	d := f.find(id)
	if d == nil || d.Current == nil {
		return display.Mode{}, false
	}
	return *d.Current, true
}

func (f *FakeService) AllModes(id display.ID) ([]display.Mode, error) {
	f.record("modes %d", id)
	d := f.find(id)
	if d == nil {
		return nil, errors.New("no such display")
	}
	if d.ModesErr != nil {
		return nil, d.ModesErr
	}
	return append([]display.Mode(nil), d.Modes...), nil
}

func (f *FakeService) BeginConfiguration() (display.Transaction, error) {
	f.record("begin")
	if f.BeginErr != nil {
		return nil, f.BeginErr
	}
	return &fakeTransaction{svc: f, pending: make(map[display.ID]display.Mode)}, nil
}

type fakeTransaction struct {
	svc     *FakeService
	pending map[display.ID]display.Mode
}

func (t *fakeTransaction) ConfigureMode(id display.ID, mode display.Mode) error {
	t.svc.record("apply %d %s", id, mode)
	if t.svc.ApplyErr != nil {
		return t.svc.ApplyErr
	}
	t.pending[id] = mode
	return nil
}

func (t *fakeTransaction) Complete(opt display.ConfigureOption) error {
	t.svc.record("commit %s", opt)
	if t.svc.CommitErr != nil {
		return t.svc.CommitErr
	}
	t.svc.mu.Lock()
	defer t.svc.mu.Unlock()
	t.svc.Option = opt
	for id, mode := range t.pending {
		t.svc.Configured[id] = mode
		if d := t.svc.find(id); d != nil {
			m := mode
			d.Current = &m
		}
	}
	return nil
}
