package cisync

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrCLINotFound is returned when the gh binary is not on PATH.
	ErrCLINotFound = errors.New("github cli not found")

	// ErrCommandFailed is returned when a gh invocation exits non-zero.
	ErrCommandFailed = errors.New("github cli command failed")

	// ErrNoRepo is returned when no repository can be detected and none was
	// given.
	ErrNoRepo = errors.New("no github repository")
)

// CommandError carries one failed gh invocation. Args are stored redacted,
// so the error is safe to log as-is.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("gh %s", strings.Join(e.Args, " "))
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s", msg, strings.TrimSpace(e.Stderr))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}

// NewCommandError creates a CommandError, redacting secret-bearing argument
// values before they can reach a log line.
func NewCommandError(args []string, stderr string, err error) *CommandError {
	return &CommandError{
		Args:   redactArgs(args),
		Stderr: stderr,
		Err:    err,
	}
}

// secretFlags name the gh flags whose following value must never appear in
// errors or logs.
var secretFlags = map[string]bool{
	"-b":     true,
	"--body": true,
}

// redactArgs masks the value following any secret-bearing flag.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if secretFlags[out[i]] {
			out[i+1] = "***"
		}
	}
	return out
}
