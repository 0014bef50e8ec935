package engine

import "fmt"

// =============================================================================
// Error Types
// =============================================================================

// StageError reports the lifecycle stage a run failed in. Unlike the leaf
// error types it unwraps to its cause, so callers can still match the
// underlying sentinel (hook execution, port budget, validation).
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new StageError.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// ApplyError reports a deployment unit whose apply call failed.
type ApplyError struct {
	Unit string
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("applying unit %s: %v", e.Unit, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// NewApplyError creates a new ApplyError.
func NewApplyError(unit string, err error) *ApplyError {
	return &ApplyError{Unit: unit, Err: err}
}
