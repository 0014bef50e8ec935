package hooks

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrHookLoad is returned when a hook unit cannot be resolved or loaded.
	// Load failures are never soft: a hook that cannot load is broken
	// configuration, not a runtime hiccup.
	ErrHookLoad = errors.New("hook unit failed to load")

	// ErrHookExec is returned when a loaded hook fails while running. This
	// is the only hook error the soft-fail switch downgrades.
	ErrHookExec = errors.New("hook execution failed")
)

// LoadError reports a hook unit that could not be loaded.
type LoadError struct {
	Ref    string
	Reason error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading hooks from %s: %v", e.Ref, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return ErrHookLoad
}

// NewLoadError creates a new LoadError.
func NewLoadError(ref string, reason error) *LoadError {
	return &LoadError{Ref: ref, Reason: reason}
}

// ExecError reports a hook that failed or panicked at a given point.
type ExecError struct {
	Point string
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("hook %s: %v", e.Point, e.Err)
}

func (e *ExecError) Unwrap() error {
	return ErrHookExec
}

// NewExecError creates a new ExecError.
func NewExecError(point string, err error) *ExecError {
	return &ExecError{Point: point, Err: err}
}
