// Package manifest contains pure functions for interpreting compose-style
// deployment manifests: parsing, role resolution and command normalization.
// This is part of the Functional Core - all functions are pure with no I/O.
package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput = errors.New("manifest is empty")

	// YAML parsing errors
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// Manifest structure errors
	ErrNoServices = errors.New("manifest must define at least one service")

	// Service validation errors
	ErrServiceNoImage     = errors.New("service must have image or build")
	ErrServiceInvalidPort = errors.New("invalid port configuration")
	ErrInvalidCommand     = errors.New("invalid command form")

	// Unsupported feature errors
	ErrUnsupportedFeature = errors.New("unsupported manifest feature")

	// Role resolution errors
	ErrRoleMissing    = errors.New("no service claims the role")
	ErrRoleAmbiguous  = errors.New("multiple services claim the role")
	ErrUnknownService = errors.New("override names a service not in the manifest")
)

// ParseError wraps errors with context about where parsing failed.
type ParseError struct {
	Field   string // e.g., "services.web.ports[0]"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// RoleError reports a failed role resolution: a required role nobody claims,
// an exclusive role claimed more than once, or an override naming a service
// the manifest does not define.
type RoleError struct {
	Role     Role
	Services []string // offending candidates, in manifest order
	Err      error
}

func (e *RoleError) Error() string {
	if len(e.Services) > 0 {
		return fmt.Sprintf("role %s: %s (%s)", e.Role, e.Err, strings.Join(e.Services, ", "))
	}
	return fmt.Sprintf("role %s: %s", e.Role, e.Err)
}

func (e *RoleError) Unwrap() error {
	return e.Err
}

// NewRoleError creates a new RoleError.
func NewRoleError(role Role, services []string, err error) *RoleError {
	return &RoleError{
		Role:     role,
		Services: services,
		Err:      err,
	}
}
