package render

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

// ErrUnrenderable is returned when a plan cannot be turned into artifacts.
var ErrUnrenderable = errors.New("plan cannot be rendered")

// RenderError reports which deployment unit failed to render and why.
type RenderError struct {
	Unit   string // empty when the failure is not unit-specific
	Reason string
}

func (e *RenderError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("render unit %s: %s", e.Unit, e.Reason)
	}
	return fmt.Sprintf("render: %s", e.Reason)
}

func (e *RenderError) Unwrap() error {
	return ErrUnrenderable
}

// NewRenderError creates a new RenderError.
func NewRenderError(unit, reason string) *RenderError {
	return &RenderError{Unit: unit, Reason: reason}
}
