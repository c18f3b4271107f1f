package display

import "fmt"

// ErrorCode is a numeric status returned by a configuration step. The values
// follow the CoreGraphics CGError numbering; other backends map onto them.
type ErrorCode int32

const (
	CodeSuccess           ErrorCode = 0
	CodeFailure           ErrorCode = 1000
	CodeIllegalArgument   ErrorCode = 1001
	CodeInvalidConnection ErrorCode = 1002
	CodeInvalidContext    ErrorCode = 1003
	CodeCannotComplete    ErrorCode = 1004
	CodeNotImplemented    ErrorCode = 1006
	CodeRangeCheck        ErrorCode = 1007
	CodeTypeCheck         ErrorCode = 1008
	CodeNoneAvailable     ErrorCode = 1011
)

var codeMeanings = map[ErrorCode]string{
	CodeFailure:           "general failure",
	CodeIllegalArgument:   "illegal argument",
	CodeInvalidConnection: "invalid connection",
	CodeInvalidContext:    "invalid process token",
	CodeCannotComplete:    "cannot complete",
	CodeNotImplemented:    "obsolete stub",
	CodeRangeCheck:        "inappropriate value",
	CodeTypeCheck:         "type mismatch",
	CodeNoneAvailable:     "not-found resources",
}

// Meaning decodes the code against the fixed table.
func (c ErrorCode) Meaning() string {
	if c == CodeSuccess {
		return "success"
	}
	if m, ok := codeMeanings[c]; ok {
		return m
	}
	return "unknown"
}

func (c ErrorCode) String() string {
	return fmt.Sprintf("%s (%d)", c.Meaning(), int32(c))
}

// Step names a phase of the configuration transaction.
type Step string

const (
	StepBegin  Step = "begin"
	StepApply  Step = "apply"
	StepCommit Step = "commit"
)

// ConfigError reports a failed transaction step.
type ConfigError struct {
	Step Step
	Code ErrorCode
	Err  error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s display configuration: %s: %v", e.Step, e.Code, e.Err)
	}
	return fmt.Sprintf("%s display configuration: %s", e.Step, e.Code)
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
