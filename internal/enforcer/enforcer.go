package enforcer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/modepin/internal/display"
)

// DefaultExpectedDisplays is the display count the enforcer insists on.
const DefaultExpectedDisplays = 2

// Config holds configuration for the enforcer.
type Config struct {
	Target display.Target

	// ExpectedDisplays aborts the run unless exactly this many displays are
	// active. Zero disables the check.
	ExpectedDisplays int

	// MatchPolicy picks between several supported modes equal to the target.
	// Empty means display.MatchLast.
	MatchPolicy display.MatchPolicy

	// Persistence is passed to the commit step. Nil means display.Permanently.
	Persistence *display.ConfigureOption

	Logger *slog.Logger
}

// Enforcer drives one managed display to the target mode.
type Enforcer struct {
	svc         display.Service
	target      display.Target
	expected    int
	policy      display.MatchPolicy
	persistence display.ConfigureOption
	logger      *slog.Logger
}

// New creates an enforcer over svc.
func New(svc display.Service, cfg Config) *Enforcer {
	policy := cfg.MatchPolicy
	if policy == "" {
		policy = display.MatchLast
	}
	persistence := display.Permanently
	if cfg.Persistence != nil {
		persistence = *cfg.Persistence
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		svc:         svc,
		target:      cfg.Target,
		expected:    cfg.ExpectedDisplays,
		policy:      policy,
		persistence: persistence,
		logger:      logger,
	}
}

// Run performs a single enforcement pass. Every failure is logged before Run
// returns it as an *Error; there are no retries.
func (e *Enforcer) Run() (Result, error) {
	target := e.target.Mode()

	ids, err := e.svc.ActiveDisplays()
	if err != nil {
		e.logger.Error("failed to list active displays", "error", err)
		return Result{Outcome: OutcomeAborted}, &Error{Kind: KindEnumeration, Err: err}
	}

	if e.expected > 0 && len(ids) != e.expected {
		e.logger.Error("unexpected number of active displays", "got", len(ids), "want", e.expected)
		return Result{Outcome: OutcomeAborted}, &Error{
			Kind: KindPrecondition,
			Err:  fmt.Errorf("got %d active displays, want %d", len(ids), e.expected),
		}
	}

	for _, id := range ids {
		serial := e.svc.SerialNumber(id)
		if serial != e.target.Serial {
			e.logger.Info("skipping unmanaged display", "display", id, "serial", serial)
			continue
		}

		if !e.svc.IsMain(id) {
			e.logger.Warn("managed display is not the main display; change this in the system display settings", "display", id)
		}

		current, ok := e.svc.CurrentMode(id)
		if !ok {
			e.logger.Warn("could not read current mode", "display", id, "serial", serial)
			continue
		}

		res := Result{Display: id, Path: []State{StateIdle}}
		if e.target.Matches(current) {
			e.logger.Info("mode already set correctly, no action needed", "display", id, "mode", current)
			res.Outcome = OutcomeAlreadyCorrect
			res.Path = append(res.Path, StateDone)
			return res, nil
		}
		e.logger.Info("display mode differs from target", "display", id, "current", current, "target", target)

		return e.reconfigure(res, id)
	}

	e.logger.Warn("managed display not found among active displays", "serial", e.target.Serial)
	return Result{Outcome: OutcomeNotPresent}, nil
}

func (e *Enforcer) reconfigure(res Result, id display.ID) (Result, error) {
	res.Path = append(res.Path, StateEnumeratingModes)
	modes, err := e.svc.AllModes(id)
	if err != nil {
		e.logger.Error("could not list display modes", "display", id, "error", err)
		return e.abort(res, KindAttribute, fmt.Errorf("list modes for display %d: %w", id, err))
	}
	for _, m := range modes {
		e.logger.Debug("supported mode", "display", id, "mode_id", m.ID, "mode", m)
	}

	desired, ok := display.Resolve(modes, e.target, e.policy)
	if !ok {
		res.Path = append(res.Path, StateModeNotFound)
		e.logger.Error("no supported mode matches target", "display", id, "target", e.target.Mode(), "supported", len(modes))
		return e.abort(res, KindModeSearch, fmt.Errorf("display %d supports no mode %s", id, e.target.Mode()))
	}
	res.Path = append(res.Path, StateModeFound)
	e.logger.Info("found desired display mode", "display", id, "mode_id", desired.ID, "mode", desired, "policy", e.policy)

	res.Path = append(res.Path, StateConfiguringBegin)
	txn, err := e.svc.BeginConfiguration()
	if err != nil {
		e.logTransactionError(display.StepBegin, id, err)
		return e.abort(res, KindTransaction, err)
	}

	res.Path = append(res.Path, StateConfiguringApply)
	if err := txn.ConfigureMode(id, desired); err != nil {
		e.logTransactionError(display.StepApply, id, err)
		return e.abort(res, KindTransaction, err)
	}

	res.Path = append(res.Path, StateConfiguringCommit)
	if err := txn.Complete(e.persistence); err != nil {
		e.logTransactionError(display.StepCommit, id, err)
		return e.abort(res, KindTransaction, err)
	}

	res.Path = append(res.Path, StateDone)
	res.Outcome = OutcomeReconfigured
	res.Applied = &desired
	e.logger.Info("display reconfigured", "display", id, "mode", desired, "persistence", e.persistence)
	return res, nil
}

func (e *Enforcer) abort(res Result, kind ErrorKind, err error) (Result, error) {
	res.Path = append(res.Path, StateAborted)
	res.Outcome = OutcomeAborted
	return res, &Error{Kind: kind, Err: err}
}

func (e *Enforcer) logTransactionError(step display.Step, id display.ID, err error) {
	var cerr *display.ConfigError
	if errors.As(err, &cerr) {
		e.logger.Error("display configuration failed",
			"step", step,
			"display", id,
			"code", int32(cerr.Code),
			"meaning", cerr.Code.Meaning(),
			"error", err,
		)
		return
	}
	e.logger.Error("display configuration failed", "step", step, "display", id, "error", err)
}
