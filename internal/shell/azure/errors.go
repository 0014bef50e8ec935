package azure

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrCLINotFound is returned when the az binary is not on PATH.
	ErrCLINotFound = errors.New("azure cli not found")

	// ErrCommandFailed is returned when an az invocation exits non-zero.
	ErrCommandFailed = errors.New("azure cli command failed")

	// ErrVaultUnreachable is returned when the Key Vault data plane cannot
	// be reached for secret reads or writes.
	ErrVaultUnreachable = errors.New("key vault data plane unreachable")
)

// CommandError carries one failed az invocation. Args are stored redacted,
// so the error is safe to log as-is.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("az %s", strings.Join(e.Args, " "))
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

// secretFlags name the az flags whose following value must never appear in
// errors or logs.
var secretFlags = map[string]bool{
	"--value":               true,
	"--password":            true,
	"--registry-password":   true,
	"--account-key":         true,
	"--storage-account-key": true,
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
