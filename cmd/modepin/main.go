package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/1broseidon/modepin/internal/config"
	"github.com/1broseidon/modepin/internal/display"
	"github.com/1broseidon/modepin/internal/enforcer"
	"github.com/1broseidon/modepin/internal/platform"
	"github.com/1broseidon/modepin/internal/report"
	"github.com/1broseidon/modepin/internal/runtimepath"
	"gopkg.in/yaml.v3"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	openServiceFn = openPlatformService
	acquireLockFn = runtimepath.AcquireLock
)

func openPlatformService(opts platform.Options) (display.Service, func(), error) {
	backend, err := platform.New(opts)
	if err != nil {
		return nil, nil, err
	}
	return backend, func() { _ = backend.Close() }, nil
}

func main() {
	if len(os.Args) < 2 {
		os.Exit(runApply(nil))
	}

	switch os.Args[1] {
	case "apply":
		os.Exit(runApply(os.Args[2:]))
	case "displays":
		os.Exit(runDisplays(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: modepin [command] [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Keeps one monitor, picked by serial number, at a fixed display mode.")
	fmt.Fprintln(w, "Without a command, modepin runs apply.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  apply               Check the managed display and reconfigure it if needed")
	fmt.Fprintln(w, "  displays            List active displays (and their modes)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'modepin <command> --help' for command-specific options.")
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func runApply(args []string) int {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/modepin/config.yaml)")
	strict := fs.Bool("strict", false, "Exit 1 when the run is aborted")
	verbose := fs.Bool("v", false, "Log every supported mode scanned")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: modepin apply [--path PATH] [--strict] [-v]")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Set the managed display to the target mode if it is not already.")
		fmt.Fprintln(stderr, "Every outcome exits 0 unless --strict is given.")
		fmt.Fprintln(stderr, "")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "apply takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	cfg := res.Config

	level := cfg.SlogLevel()
	if *verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(stdout, level)
	if res.File != "" {
		logger.Debug("configuration loaded", "file", res.File)
	}

	aborted := func() int {
		if *strict {
			return 1
		}
		return 0
	}

	lock, err := acquireLockFn()
	switch {
	case errors.Is(err, runtimepath.ErrLocked):
		logger.Warn("skipping run", "reason", err)
		return aborted()
	case err != nil:
		logger.Warn("run lock unavailable, continuing without it", "error", err)
	default:
		defer func() { _ = lock.Release() }()
	}

	svc, closeSvc, err := openServiceFn(platform.Options{Display: cfg.Display, XAuthority: cfg.XAuthority})
	if err != nil {
		logger.Error("failed to open display service", "error", err)
		return aborted()
	}
	defer closeSvc()

	persistence := cfg.ConfigureOption()
	e := enforcer.New(svc, enforcer.Config{
		Target:           cfg.DisplayTarget(),
		ExpectedDisplays: cfg.ExpectedDisplays,
		MatchPolicy:      cfg.MatchPolicy(),
		Persistence:      &persistence,
		Logger:           logger,
	})

	result, err := e.Run()
	if err != nil {
		var rerr *enforcer.Error
		kind := ""
		if errors.As(err, &rerr) {
			kind = string(rerr.Kind)
		}
		logger.Info("run finished", "outcome", result.Outcome, "kind", kind)
		return aborted()
	}
	logger.Info("run finished", "outcome", result.Outcome)
	return 0
}

func runDisplays(args []string) int {
	fs := flag.NewFlagSet("displays", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/modepin/config.yaml)")
	withModes := fs.Bool("modes", false, "Also list every supported mode")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: modepin displays [--path PATH] [--modes]")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "List active displays and mark the managed one.")
		fmt.Fprintln(stderr, "")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "displays takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	cfg := res.Config

	svc, closeSvc, err := openServiceFn(platform.Options{Display: cfg.Display, XAuthority: cfg.XAuthority})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open display service: %v\n", err)
		return 1
	}
	defer closeSvc()

	target := cfg.DisplayTarget()
	entries, err := report.Collect(svc, target, *withModes)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := report.Write(stdout, entries, target, report.IsTerminal(stdout)); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(stderr, "Usage:")
		fmt.Fprintln(stderr, "  modepin config validate [--path PATH]")
		fmt.Fprintln(stderr, "  modepin config print [--path PATH] [--defaults]")
		fmt.Fprintln(stderr, "  modepin config explain [--path PATH] <yaml.path>")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/modepin/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintln(stdout, "config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/modepin/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 1
			}
			if res.File != "" {
				fmt.Fprintf(stdout, "# file: %s\n", res.File)
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprint(stdout, string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/modepin/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}

		fmt.Fprintf(stdout, "path: %s\n", queryPath)
		fmt.Fprintf(stdout, "source: %s\n", formatSource(src))
		fmt.Fprintf(stdout, "value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		return "default"
	default:
		return string(src.Kind)
	}
}
