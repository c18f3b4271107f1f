package enforcer

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/1broseidon/modepin/internal/display"
	"github.com/1broseidon/modepin/internal/testutil"
)

const homeSerial = 959853388

var (
	target = display.Target{Serial: homeSerial, Width: 1920, Height: 1080, BitDepth: 32, RefreshRate: 60}

	mode800  = display.Mode{ID: 10, Width: 1280, Height: 800, BitDepth: 32, RefreshRate: 60}
	mode1080 = display.Mode{ID: 20, Width: 1920, Height: 1080, BitDepth: 32, RefreshRate: 60}
)

func modePtr(m display.Mode) *display.Mode { return &m }

func newTestEnforcer(t *testing.T, svc display.Service) (*Enforcer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(svc, Config{
		Target:           target,
		ExpectedDisplays: DefaultExpectedDisplays,
		Logger:           logger,
	}), &buf
}

func otherDisplay() *testutil.FakeDisplay {
	return &testutil.FakeDisplay{ID: 1, Serial: 111, Main: true, Current: modePtr(mode800), Modes: []display.Mode{mode800, mode1080}}
}

func homeDisplay(current display.Mode, modes ...display.Mode) *testutil.FakeDisplay {
	return &testutil.FakeDisplay{ID: 2, Serial: homeSerial, Main: true, Current: modePtr(current), Modes: modes}
}

func TestRun_ExampleReconfiguresManagedDisplay(t *testing.T) {
	svc := testutil.NewFakeService(otherDisplay(), homeDisplay(mode800, mode800, mode1080))
	e, _ := newTestEnforcer(t, svc)

	res, err := e.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Outcome != OutcomeReconfigured {
		t.Fatalf("Outcome = %q, want %q", res.Outcome, OutcomeReconfigured)
	}
	if res.Display != 2 || res.Applied == nil || *res.Applied != mode1080 {
		t.Fatalf("unexpected result %+v", res)
	}

	wantCalls := []string{"begin", "apply 2 1920x1080x32@60", "commit permanent"}
	if got := svc.ConfigCalls(); !reflect.DeepEqual(got, wantCalls) {
		t.Fatalf("config calls = %v, want %v", got, wantCalls)
	}
	if svc.Option != display.Permanently {
		t.Fatalf("commit option = %v, want permanent", svc.Option)
	}
	if _, touched := svc.Configured[1]; touched {
		t.Fatal("unmanaged display was reconfigured")
	}

	wantPath := []State{
		StateIdle,
		StateEnumeratingModes,
		StateModeFound,
		StateConfiguringBegin,
		StateConfiguringApply,
		StateConfiguringCommit,
		StateDone,
	}
	if !reflect.DeepEqual(res.Path, wantPath) {
		t.Fatalf("Path = %v, want %v", res.Path, wantPath)
	}
}

func TestRun_WrongDisplayCountNeverConfigures(t *testing.T) {
	for _, n := range []int{0, 1, 3, 4} {
		var displays []*testutil.FakeDisplay
		for i := 0; i < n; i++ {
			d := homeDisplay(mode800, mode1080)
			d.ID = display.ID(i + 1)
			displays = append(displays, d)
		}
		svc := testutil.NewFakeService(displays...)
		e, _ := newTestEnforcer(t, svc)

		res, err := e.Run()
		var rerr *Error
		if !errors.As(err, &rerr) || rerr.Kind != KindPrecondition {
			t.Fatalf("%d displays: err = %v, want precondition error", n, err)
		}
		if res.Outcome != OutcomeAborted {
			t.Fatalf("%d displays: Outcome = %q", n, res.Outcome)
		}
		if calls := svc.ConfigCalls(); len(calls) != 0 {
			t.Fatalf("%d displays: config calls = %v, want none", n, calls)
		}
	}
}

func TestRun_ExpectedDisplaysZeroDisablesCountCheck(t *testing.T) {
	svc := testutil.NewFakeService(homeDisplay(mode1080))
	e := New(svc, Config{Target: target, Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))})

	res, err := e.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Outcome != OutcomeAlreadyCorrect {
		t.Fatalf("Outcome = %q, want %q", res.Outcome, OutcomeAlreadyCorrect)
	}
}

func TestRun_AlreadyCorrectIsNoop(t *testing.T) {
	svc := testutil.NewFakeService(otherDisplay(), homeDisplay(mode1080, mode1080))
	e, logs := newTestEnforcer(t, svc)

	res, err := e.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Outcome != OutcomeAlreadyCorrect {
		t.Fatalf("Outcome = %q, want %q", res.Outcome, OutcomeAlreadyCorrect)
	}
	if !reflect.DeepEqual(res.Path, []State{StateIdle, StateDone}) {
		t.Fatalf("Path = %v", res.Path)
	}
	for _, c := range svc.Calls {
		if strings.HasPrefix(c, "modes") {
			t.Fatalf("unexpected mode enumeration: %v", svc.Calls)
		}
	}
	if calls := svc.ConfigCalls(); len(calls) != 0 {
		t.Fatalf("config calls = %v, want none", calls)
	}
	if !strings.Contains(logs.String(), "mode already set correctly") {
		t.Fatalf("missing success log:\n%s", logs.String())
	}
}

func TestRun_NoMatchingModeNeverBegins(t *testing.T) {
	svc := testutil.NewFakeService(otherDisplay(), homeDisplay(mode800, mode800))
	e, _ := newTestEnforcer(t, svc)

	res, err := e.Run()
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindModeSearch {
		t.Fatalf("err = %v, want mode-search error", err)
	}
	if got := svc.ConfigCalls(); len(got) != 0 {
		t.Fatalf("config calls = %v, want none", got)
	}
	wantPath := []State{StateIdle, StateEnumeratingModes, StateModeNotFound, StateAborted}
	if !reflect.DeepEqual(res.Path, wantPath) {
		t.Fatalf("Path = %v, want %v", res.Path, wantPath)
	}
}

func TestRun_SerialFilterIsExact(t *testing.T) {
	near := homeDisplay(mode800, mode1080)
	near.ID = 3
	near.Serial = homeSerial + 1
	svc := testutil.NewFakeService(otherDisplay(), near)
	e, _ := newTestEnforcer(t, svc)

	res, err := e.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Outcome != OutcomeNotPresent {
		t.Fatalf("Outcome = %q, want %q", res.Outcome, OutcomeNotPresent)
	}
	if got := svc.ConfigCalls(); len(got) != 0 {
		t.Fatalf("config calls = %v, want none", got)
	}
}

func TestRun_IdempotentSecondRun(t *testing.T) {
	svc := testutil.NewFakeService(otherDisplay(), homeDisplay(mode800, mode800, mode1080))
	e, _ := newTestEnforcer(t, svc)

	first, err := e.Run()
	if err != nil || first.Outcome != OutcomeReconfigured {
		t.Fatalf("first run = %+v, %v", first, err)
	}
	before := len(svc.ConfigCalls())

	second, err := e.Run()
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}
	if second.Outcome != OutcomeAlreadyCorrect {
		t.Fatalf("second Outcome = %q, want %q", second.Outcome, OutcomeAlreadyCorrect)
	}
	if after := len(svc.ConfigCalls()); after != before {
		t.Fatalf("second run issued %d config calls", after-before)
	}
}

func TestRun_MatchPolicy(t *testing.T) {
	dupA := mode1080
	dupB := mode1080
	dupB.ID = 21

	cases := []struct {
		policy display.MatchPolicy
		wantID uint32
	}{
		{display.MatchFirst, 20},
		{display.MatchLast, 21},
		{"", 21},
	}
	for _, tc := range cases {
		svc := testutil.NewFakeService(otherDisplay(), homeDisplay(mode800, dupA, mode800, dupB))
		e := New(svc, Config{
			Target:           target,
			ExpectedDisplays: 2,
			MatchPolicy:      tc.policy,
			Logger:           slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		})
		res, err := e.Run()
		if err != nil {
			t.Fatalf("policy %q: Run() error: %v", tc.policy, err)
		}
		if res.Applied == nil || res.Applied.ID != tc.wantID {
			t.Fatalf("policy %q: applied %v, want mode id %d", tc.policy, res.Applied, tc.wantID)
		}
	}
}

func TestRun_CustomPersistence(t *testing.T) {
	svc := testutil.NewFakeService(otherDisplay(), homeDisplay(mode800, mode1080))
	session := display.ForSession
	e := New(svc, Config{Target: target, ExpectedDisplays: 2, Persistence: &session})

	if _, err := e.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if svc.Option != display.ForSession {
		t.Fatalf("commit option = %v, want session", svc.Option)
	}
}

func TestRun_EnumerationFailure(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.ListErr = errors.New("display service unavailable")
	e, logs := newTestEnforcer(t, svc)

	_, err := e.Run()
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindEnumeration {
		t.Fatalf("err = %v, want enumeration error", err)
	}
	if !strings.Contains(logs.String(), "display service unavailable") {
		t.Fatalf("error not logged:\n%s", logs.String())
	}
}

func TestRun_UnreadableCurrentModeSkipsDisplay(t *testing.T) {
	home := homeDisplay(mode800, mode1080)
	home.Current = nil
	svc := testutil.NewFakeService(otherDisplay(), home)
	e, _ := newTestEnforcer(t, svc)

	res, err := e.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Outcome != OutcomeNotPresent {
		t.Fatalf("Outcome = %q, want %q", res.Outcome, OutcomeNotPresent)
	}
}

func TestRun_ModeListFailure(t *testing.T) {
	home := homeDisplay(mode800)
	home.ModesErr = errors.New("no mode list")
	svc := testutil.NewFakeService(otherDisplay(), home)
	e, _ := newTestEnforcer(t, svc)

	_, err := e.Run()
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindAttribute {
		t.Fatalf("err = %v, want attribute error", err)
	}
	if got := svc.ConfigCalls(); len(got) != 0 {
		t.Fatalf("config calls = %v, want none", got)
	}
}

func TestRun_NotMainLogsWarning(t *testing.T) {
	home := homeDisplay(mode1080)
	home.Main = false
	svc := testutil.NewFakeService(otherDisplay(), home)
	e, logs := newTestEnforcer(t, svc)

	if _, err := e.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.Contains(logs.String(), "level=WARN") || !strings.Contains(logs.String(), "not the main display") {
		t.Fatalf("missing not-main warning:\n%s", logs.String())
	}
}

func TestRun_TransactionFailures(t *testing.T) {
	commitErr := &display.ConfigError{Step: display.StepCommit, Code: display.CodeCannotComplete}

	cases := []struct {
		name      string
		setup     func(*testutil.FakeService)
		wantCalls []string
		wantFinal []State
		wantLog   string
	}{
		{
			name:      "begin",
			setup:     func(s *testutil.FakeService) { s.BeginErr = &display.ConfigError{Step: display.StepBegin, Code: display.CodeFailure} },
			wantCalls: []string{"begin"},
			wantFinal: []State{StateConfiguringBegin, StateAborted},
			wantLog:   "meaning=\"general failure\"",
		},
		{
			name:      "apply",
			setup:     func(s *testutil.FakeService) { s.ApplyErr = errors.New("bad mode") },
			wantCalls: []string{"begin", "apply 2 1920x1080x32@60"},
			wantFinal: []State{StateConfiguringApply, StateAborted},
			wantLog:   "step=apply",
		},
		{
			name:      "commit",
			setup:     func(s *testutil.FakeService) { s.CommitErr = commitErr },
			wantCalls: []string{"begin", "apply 2 1920x1080x32@60", "commit permanent"},
			wantFinal: []State{StateConfiguringCommit, StateAborted},
			wantLog:   "meaning=\"cannot complete\"",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := testutil.NewFakeService(otherDisplay(), homeDisplay(mode800, mode1080))
			tc.setup(svc)
			e, logs := newTestEnforcer(t, svc)

			res, err := e.Run()
			var rerr *Error
			if !errors.As(err, &rerr) || rerr.Kind != KindTransaction {
				t.Fatalf("err = %v, want transaction error", err)
			}
			if got := svc.ConfigCalls(); !reflect.DeepEqual(got, tc.wantCalls) {
				t.Fatalf("config calls = %v, want %v", got, tc.wantCalls)
			}
			tail := res.Path[len(res.Path)-2:]
			if !reflect.DeepEqual(tail, tc.wantFinal) {
				t.Fatalf("path tail = %v, want %v", tail, tc.wantFinal)
			}
			if res.Final() != StateAborted || !res.Final().Terminal() {
				t.Fatalf("Final() = %v", res.Final())
			}
			if !strings.Contains(logs.String(), tc.wantLog) {
				t.Fatalf("log missing %q:\n%s", tc.wantLog, logs.String())
			}
			if len(svc.Configured) != 0 {
				t.Fatalf("configuration leaked: %v", svc.Configured)
			}
		})
	}
}
