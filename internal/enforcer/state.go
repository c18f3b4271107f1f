package enforcer

import (
	"fmt"

	"github.com/1broseidon/modepin/internal/display"
)

// State is a step of the per-display enforcement state machine.
type State int

const (
	StateIdle State = iota
	StateEnumeratingModes
	StateModeFound
	StateModeNotFound
	StateConfiguringBegin
	StateConfiguringApply
	StateConfiguringCommit
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateIdle:              "idle",
	StateEnumeratingModes:  "enumerating-modes",
	StateModeFound:         "mode-found",
	StateModeNotFound:      "mode-not-found",
	StateConfiguringBegin:  "configuring-begin",
	StateConfiguringApply:  "configuring-apply",
	StateConfiguringCommit: "configuring-commit",
	StateDone:              "done",
	StateAborted:           "aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Outcome summarises a run.
type Outcome string

const (
	OutcomeAlreadyCorrect Outcome = "already-correct"
	OutcomeReconfigured   Outcome = "reconfigured"
	OutcomeNotPresent     Outcome = "not-present"
	OutcomeAborted        Outcome = "aborted"
)

// Result is what a run did. Path holds the states visited by the managed
// display, starting at StateIdle.
type Result struct {
	Outcome Outcome
	Path    []State
	Display display.ID
	Applied *display.Mode
}

// Final returns the last state in Path, or StateIdle for an empty path.
func (r Result) Final() State {
	if len(r.Path) == 0 {
		return StateIdle
	}
	return r.Path[len(r.Path)-1]
}

// ErrorKind classifies why a run stopped.
type ErrorKind string

const (
	KindEnumeration  ErrorKind = "enumeration"
	KindPrecondition ErrorKind = "precondition"
	KindAttribute    ErrorKind = "attribute"
	KindModeSearch   ErrorKind = "mode-search"
	KindTransaction  ErrorKind = "transaction"
)

// Error is returned by Run for every aborted run. It has already been logged.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
