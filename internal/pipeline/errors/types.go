package errors

import (
	stderrors "errors"
	"fmt"
)

// StageError wraps the error that aborted a run with the failing stage
type StageError struct {
	Stage   string
	Message string
	Inner   error
}

func (e *StageError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("stage '%s': %s: %v", e.Stage, e.Message, e.Inner)
	}
	return fmt.Sprintf("stage '%s': %v", e.Stage, e.Inner)
}

func (e *StageError) Unwrap() error {
	return e.Inner
}

// NewStageError creates a new stage error
func NewStageError(stage string, inner error) *StageError {
	return &StageError{Stage: stage, Inner: inner}
}

// AsStageError extracts a StageError from err
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// StageTimeoutError indicates a stage exceeded its timeout. Inner is the
// error the stage returned when its deadline expired.
type StageTimeoutError struct {
	Stage   string
	Timeout string
	Inner   error
}

func (e *StageTimeoutError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("stage '%s' timed out after %s", e.Stage, e.Timeout)
	}
	return fmt.Sprintf("stage '%s' timed out after %s: %v", e.Stage, e.Timeout, e.Inner)
}

func (e *StageTimeoutError) Unwrap() error {
	return e.Inner
}

// UnknownStageError indicates a stage name that is not registered
type UnknownStageError struct {
	Name  string
	Known []string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q (known: %v)", e.Name, e.Known)
}
