// Package history persists deployment runs and provisioned targets in a
// local SQLite database.
package history

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateID is returned when creating a record with an existing ID.
	ErrDuplicateID = errors.New("record with this ID already exists")

	// ErrDuplicateTarget is returned when an active target with the same
	// name already exists.
	ErrDuplicateTarget = errors.New("active target with this name already exists")

	// ErrConnectionFailed is returned when the database cannot be opened.
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrMigrationFailed is returned when database migration fails.
	ErrMigrationFailed = errors.New("database migration failed")

	// ErrInvalidData is returned when JSON serialization or deserialization
	// fails.
	ErrInvalidData = errors.New("invalid data format")

	// ErrNoCipherKey is returned when decrypting a snapshot without a key.
	ErrNoCipherKey = errors.New("no encryption key configured")
)

// StoreError wraps errors with the failing operation and record identity.
type StoreError struct {
	Op      string // Operation that failed (e.g., "SaveRun")
	Entity  string // Entity type ("run", "target")
	ID      string // Record ID if applicable
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}
