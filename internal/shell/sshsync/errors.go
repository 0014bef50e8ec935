// Package sshsync pushes deployment files to a webhook target host and runs
// remote commands on it over SSH. It is the transport under the Portainer
// apply collaborator: stack and env files go up, and the host-side docker
// commands (ensure Portainer, registry login, image pull) run through it.
package sshsync

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrInvalidKey is returned when the SSH private key cannot be parsed.
	ErrInvalidKey = errors.New("invalid ssh private key")

	// ErrConnectionFailed is returned when the host cannot be reached or the
	// connectivity check fails.
	ErrConnectionFailed = errors.New("ssh connection failed")

	// ErrCommandFailed is returned when a remote command exits non-zero or
	// times out.
	ErrCommandFailed = errors.New("remote command failed")

	// ErrUploadFailed is returned when a file upload does not complete.
	ErrUploadFailed = errors.New("upload failed")
)

// SyncError wraps errors with the failing operation and target host.
type SyncError struct {
	Op      string // Operation that failed (e.g., "Run")
	Host    string
	Message string
	Err     error
}

func (e *SyncError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Host, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError creates a new SyncError.
func NewSyncError(op, host, message string, err error) *SyncError {
	return &SyncError{
		Op:      op,
		Host:    host,
		Message: message,
		Err:     err,
	}
}
