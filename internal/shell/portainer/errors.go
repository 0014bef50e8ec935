// Package portainer applies a deployment to a docker host running Portainer:
// it converts the plan into a compose stack, syncs it to the host over SSH,
// and fires the stack webhook. It is the webhook-target counterpart of the
// Azure apply collaborator.
package portainer

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrBuildContexts is returned when the stack still carries services
	// that build locally instead of naming an image.
	ErrBuildContexts = errors.New("stack requires image-based services")

	// ErrPortConflict is returned when two services publish the same host
	// port, or a service claims a port Portainer itself holds.
	ErrPortConflict = errors.New("duplicate published port")

	// ErrNotConfigured is returned when neither a webhook URL nor a token
	// is available.
	ErrNotConfigured = errors.New("webhook not configured")

	// ErrWebhookNotFound is returned when every known webhook URL layout
	// answered 404.
	ErrWebhookNotFound = errors.New("webhook not found")

	// ErrWebhookFailed is returned for any other webhook trigger failure.
	ErrWebhookFailed = errors.New("webhook trigger failed")
)

// PortainerError wraps errors with the failing operation and its target.
type PortainerError struct {
	Op      string // Operation that failed (e.g., "Trigger")
	Target  string // Host, stack or port the operation acted on
	Message string
	Err     error
}

func (e *PortainerError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Target, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *PortainerError) Unwrap() error {
	return e.Err
}

// NewPortainerError creates a new PortainerError.
func NewPortainerError(op, target, message string, err error) *PortainerError {
	return &PortainerError{
		Op:      op,
		Target:  target,
		Message: message,
		Err:     err,
	}
}
