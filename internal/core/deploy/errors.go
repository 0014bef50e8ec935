// Package deploy builds canonical deployment plans from a resolved
// environment and an interpreted manifest, and derives the deployment units
// a plan spans on the target platform.
// This is part of the Functional Core - all functions are pure with no I/O.
package deploy

import (
	"errors"
	"fmt"

	"github.com/artpar/shipway/internal/core/manifest"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrPlanIncomplete is returned when the selected mode needs a role or
	// value the inputs do not provide.
	ErrPlanIncomplete = errors.New("plan is incomplete")

	// ErrPortBudget is returned when a single deployment unit needs more
	// public ports than the platform allows.
	ErrPortBudget = errors.New("public port budget exceeded")

	// ErrBadMode is returned for an unknown deployment mode.
	ErrBadMode = errors.New("unknown deployment mode")

	// ErrBadValue is returned when a configuration value cannot be parsed.
	ErrBadValue = errors.New("invalid configuration value")
)

// IncompleteError reports which role or field kept the plan from building.
type IncompleteError struct {
	Role   manifest.Role // zero value when the gap is not role-specific
	Reason string
}

func (e *IncompleteError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("incomplete plan: role %s: %s", e.Role, e.Reason)
	}
	return fmt.Sprintf("incomplete plan: %s", e.Reason)
}

func (e *IncompleteError) Unwrap() error {
	return ErrPlanIncomplete
}

// NewIncompleteError creates a new IncompleteError.
func NewIncompleteError(role manifest.Role, reason string) *IncompleteError {
	return &IncompleteError{Role: role, Reason: reason}
}

// PortBudgetError reports a deployment unit that cannot fit the platform's
// public port budget even when given a unit of its own.
type PortBudgetError struct {
	Unit   string
	Ports  int
	Budget int
}

func (e *PortBudgetError) Error() string {
	return fmt.Sprintf("unit %s needs %d public ports, budget is %d", e.Unit, e.Ports, e.Budget)
}

func (e *PortBudgetError) Unwrap() error {
	return ErrPortBudget
}

// NewPortBudgetError creates a new PortBudgetError.
func NewPortBudgetError(unit string, ports, budget int) *PortBudgetError {
	return &PortBudgetError{Unit: unit, Ports: ports, Budget: budget}
}

// ValueError reports a configuration value that failed to parse.
type ValueError struct {
	Key     string
	Value   string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s=%q: %s", e.Key, e.Value, e.Message)
}

func (e *ValueError) Unwrap() error {
	return ErrBadValue
}

// NewValueError creates a new ValueError.
func NewValueError(key, value, message string) *ValueError {
	return &ValueError{Key: key, Value: value, Message: message}
}
