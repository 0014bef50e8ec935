// Package image publishes the images a deployment references: local builds,
// registry login and push, and the sidecar prefetch-and-mirror that keeps
// every image the target platform pulls in a single registry.
package image

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrConnectionFailed is returned when the docker daemon is unreachable.
	ErrConnectionFailed = errors.New("docker connection failed")

	// ErrBuildFailed is returned when an image build fails.
	ErrBuildFailed = errors.New("image build failed")

	// ErrPushFailed is returned when an image push fails.
	ErrPushFailed = errors.New("image push failed")

	// ErrPullFailed is returned when an image pull fails.
	ErrPullFailed = errors.New("image pull failed")

	// ErrLoginFailed is returned when registry authentication fails.
	ErrLoginFailed = errors.New("registry login failed")

	// ErrBadReference is returned when an image reference is unusable.
	ErrBadReference = errors.New("bad image reference")
)

// ImageError wraps errors with the failing operation and image reference.
type ImageError struct {
	Op      string // Operation that failed (e.g., "Build")
	Ref     string // Image reference if applicable
	Message string
	Err     error
}

func (e *ImageError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Ref, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// NewImageError creates a new ImageError.
func NewImageError(op, ref, message string, err error) *ImageError {
	return &ImageError{
		Op:      op,
		Ref:     ref,
		Message: message,
		Err:     err,
	}
}
