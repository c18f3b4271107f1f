package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/1broseidon/modepin/internal/config"
	"github.com/1broseidon/modepin/internal/display"
	"github.com/1broseidon/modepin/internal/platform"
	"github.com/1broseidon/modepin/internal/runtimepath"
	"github.com/1broseidon/modepin/internal/testutil"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prevOut, prevErr := stdout, stderr
	stdout, stderr = &out, &errOut
	t.Cleanup(func() { stdout, stderr = prevOut, prevErr })
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	return &out, &errOut
}

func useService(t *testing.T, svc display.Service, openErr error) *bool {
	t.Helper()
	closed := false
	prev := openServiceFn
	openServiceFn = func(platform.Options) (display.Service, func(), error) {
		if openErr != nil {
			return nil, nil, openErr
		}
		return svc, func() { closed = true }, nil
	}
	t.Cleanup(func() { openServiceFn = prev })
	return &closed
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func twoDisplays() *testutil.FakeService {
	m800 := display.Mode{ID: 1, Width: 1280, Height: 800, BitDepth: 32, RefreshRate: 60}
	m1080 := display.Mode{ID: 2, Width: 1920, Height: 1080, BitDepth: 32, RefreshRate: 60}
	return testutil.NewFakeService(
		&testutil.FakeDisplay{ID: 1, Serial: 111, Main: true, Current: &m800, Modes: []display.Mode{m800}},
		&testutil.FakeDisplay{ID: 2, Serial: 959853388, Current: &m800, Modes: []display.Mode{m800, m1080}},
	)
}

func TestRunApply_ReconfiguresManagedDisplay(t *testing.T) {
	out, _ := captureOutput(t)
	svc := twoDisplays()
	closed := useService(t, svc, nil)

	path := writeConfig(t, "log_level: info\n")
	if code := runApply([]string{"--path", path}); code != 0 {
		t.Fatalf("runApply() = %d, want 0", code)
	}
	if !*closed {
		t.Fatal("display service was not closed")
	}
	got := svc.ConfigCalls()
	want := []string{"begin", "apply 2 1920x1080x32@60", "commit permanent"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("config calls = %q, want %q", got, want)
	}
	if !strings.Contains(out.String(), "outcome=reconfigured") {
		t.Fatalf("log missing outcome:\n%s", out.String())
	}
}

func TestRunApply_AbortedExitCode(t *testing.T) {
	cases := []struct {
		name   string
		args   []string
		expect int
	}{
		{"default", nil, 0},
		{"strict", []string{"--strict"}, 1},
	}
	for _, tc := range cases {
		captureOutput(t)
		svc := twoDisplays()
		svc.CommitErr = &display.ConfigError{Step: display.StepCommit, Code: display.CodeCannotComplete}
		useService(t, svc, nil)

		args := append([]string{"--path", writeConfig(t, "")}, tc.args...)
		if code := runApply(args); code != tc.expect {
			t.Fatalf("%s: runApply() = %d, want %d", tc.name, code, tc.expect)
		}
	}
}

func TestRunApply_ServiceUnavailable(t *testing.T) {
	out, _ := captureOutput(t)
	useService(t, nil, errors.New("no display"))

	path := writeConfig(t, "")
	if code := runApply([]string{"--path", path}); code != 0 {
		t.Fatalf("runApply() = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "failed to open display service") {
		t.Fatalf("log missing service error:\n%s", out.String())
	}
	if code := runApply([]string{"--path", path, "--strict"}); code != 1 {
		t.Fatalf("runApply(--strict) = %d, want 1", code)
	}
}

func TestRunApply_SkipsWhenLocked(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("run lock is a no-op on " + runtime.GOOS)
	}
	out, _ := captureOutput(t)
	svc := twoDisplays()
	useService(t, svc, nil)

	held, err := runtimepath.AcquireLock()
	if err != nil {
		t.Fatalf("AcquireLock() error: %v", err)
	}
	defer held.Release()

	path := writeConfig(t, "")
	if code := runApply([]string{"--path", path, "--strict"}); code != 1 {
		t.Fatalf("runApply() = %d, want 1", code)
	}
	if len(svc.Calls) != 0 {
		t.Fatalf("service called while locked: %q", svc.Calls)
	}
	if !strings.Contains(out.String(), "another modepin run is in progress") {
		t.Fatalf("log missing lock reason:\n%s", out.String())
	}
}

func TestRunApply_BadConfig(t *testing.T) {
	_, errOut := captureOutput(t)
	useService(t, twoDisplays(), nil)

	path := writeConfig(t, "mode_match: middle\n")
	if code := runApply([]string{"--path", path}); code != 1 {
		t.Fatalf("runApply() = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "mode_match") {
		t.Fatalf("stderr = %q, want mode_match error", errOut.String())
	}
}

func TestRunApply_UsageErrors(t *testing.T) {
	captureOutput(t)
	if code := runApply([]string{"extra"}); code != 2 {
		t.Fatalf("runApply(extra) = %d, want 2", code)
	}
	if code := runApply([]string{"--bogus"}); code != 2 {
		t.Fatalf("runApply(--bogus) = %d, want 2", code)
	}
}

func TestRunDisplays_ListsManagedDisplay(t *testing.T) {
	out, _ := captureOutput(t)
	useService(t, twoDisplays(), nil)

	if code := runDisplays([]string{"--path", writeConfig(t, ""), "--modes"}); code != 0 {
		t.Fatalf("runDisplays() = %d, want 0", code)
	}
	for _, want := range []string{"959853388", "managed", "<- target"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunDisplays_ServiceUnavailable(t *testing.T) {
	captureOutput(t)
	useService(t, nil, errors.New("no display"))

	if code := runDisplays([]string{"--path", writeConfig(t, "")}); code != 1 {
		t.Fatalf("runDisplays() = %d, want 1", code)
	}
}

func TestRunConfig_ExplainReportsFileSource(t *testing.T) {
	out, _ := captureOutput(t)
	path := writeConfig(t, "serial: 42\n")

	if code := runConfig([]string{"explain", "--path", path, "serial"}); code != 0 {
		t.Fatalf("runConfig(explain) = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "source: file:"+path+":1:") {
		t.Fatalf("explain output = %q", out.String())
	}
	if !strings.Contains(out.String(), "42") {
		t.Fatalf("explain output missing value: %q", out.String())
	}
}

func TestRunConfig_PrintDefaults(t *testing.T) {
	out, _ := captureOutput(t)
	if code := runConfig([]string{"print", "--defaults"}); code != 0 {
		t.Fatalf("runConfig(print) = %d, want 0", code)
	}
	for _, want := range []string{"serial: 959853388", "width: 1920", "mode_match: last", "persistence: permanent"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("print output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunConfig_Validate(t *testing.T) {
	captureOutput(t)
	if code := runConfig([]string{"validate", "--path", writeConfig(t, "serial: 0\n")}); code != 1 {
		t.Fatalf("validate(serial 0) = %d, want 1", code)
	}
	if code := runConfig([]string{"validate", "--path", writeConfig(t, "serial: 7\n")}); code != 0 {
		t.Fatalf("validate(serial 7) = %d, want 0", code)
	}
	if code := runConfig([]string{"frobnicate"}); code != 2 {
		t.Fatalf("unknown subcommand = %d, want 2", code)
	}
}

func TestFormatSource(t *testing.T) {
	if got := formatSource(config.Source{Kind: config.SourceDefault}); got != "default" {
		t.Fatalf("formatSource(default) = %q", got)
	}
	src := config.Source{Kind: config.SourceFile, File: "/tmp/c.yaml", Line: 2, Column: 3}
	if got, want := formatSource(src), "file:/tmp/c.yaml:2:3"; got != want {
		t.Fatalf("formatSource(file) = %q, want %q", got, want)
	}
}
