package envschema

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrUnknownKeys is wrapped when a source contains keys absent from the schema.
	ErrUnknownKeys = errors.New("unknown keys")

	// ErrMissingKeys is wrapped when mandatory keys have no value after defaults.
	ErrMissingKeys = errors.New("missing mandatory keys")

	// ErrCrossField is wrapped when a cross-field rule is violated.
	ErrCrossField = errors.New("cross-field rule violated")

	// ErrBadSchema is wrapped when a schema definition itself is invalid.
	ErrBadSchema = errors.New("invalid schema definition")
)

// ValidationError reports every problem found in one pass so callers see the
// complete list instead of the first offender.
type ValidationError struct {
	Context  string   // e.g. "runtime (.env)"
	Problems []string // human-readable, one per offender group
	Err      error    // sentinel category
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("env validation failed: %s: %s", e.Context, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Format renders the multi-line report shown to users.
func (e *ValidationError) Format() string {
	lines := []string{fmt.Sprintf("[env] validation failed: %s", e.Context)}
	for _, p := range e.Problems {
		lines = append(lines, "- "+p)
	}
	return strings.Join(lines, "\n")
}

// NewValidationError creates a ValidationError for the given category sentinel.
func NewValidationError(context string, problems []string, err error) *ValidationError {
	return &ValidationError{Context: context, Problems: problems, Err: err}
}

// SchemaError reports an invalid schema definition.
type SchemaError struct {
	Schema  string
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: %s", e.Schema, e.Message)
}

func (e *SchemaError) Unwrap() error {
	return ErrBadSchema
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(schema, message string) *SchemaError {
	return &SchemaError{Schema: schema, Message: message}
}
