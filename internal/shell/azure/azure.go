// Package azure shells out to the Azure CLI: infrastructure bootstrap, Key
// Vault secrets, and container group application with the retry policy ACI
// needs in practice. This is part of the Imperative Shell.
//
// Everything goes through [CLI], a thin az runner that logs each invocation
// with secret-bearing flag values redacted. The higher-level collaborators -
// [Preparer], [Applier], [Vault] - compose it and are the types the engine
// and the command layer actually wire.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// azExec runs one az invocation and returns its standard output.
// It exists so tests can script az behavior without the binary.
type azExec interface {
	run(ctx context.Context, args []string, stdin string) (string, error)
}

// systemExec invokes the real az binary.
type systemExec struct{}

func (systemExec) run(ctx context.Context, args []string, stdin string) (string, error) {
	cmd := exec.CommandContext(ctx, "az", args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", NewCommandError(args, stderr.String(), err)
	}
	return stdout.String(), nil
}

// =============================================================================
// CLI
// =============================================================================

// CLI invokes the Azure CLI. Construct with New; the zero value panics on use.
type CLI struct {
	exec azExec
	log  *slog.Logger
}

// New creates a CLI that shells out to az.
func New(log *slog.Logger) *CLI {
	if log == nil {
		log = slog.Default()
	}
	return &CLI{exec: systemExec{}, log: log.With("component", "azure")}
}

// Check verifies the az binary is available.
func (c *CLI) Check() error {
	if _, err := exec.LookPath("az"); err != nil {
		return fmt.Errorf("%w: install it and run az login", ErrCLINotFound)
	}
	return nil
}

// Run executes az with the given arguments and returns trimmed stdout.
// The invocation is logged with secret flag values redacted.
func (c *CLI) Run(ctx context.Context, args ...string) (string, error) {
	c.log.Debug("az", "args", strings.Join(redactArgs(args), " "))
	out, err := c.exec.run(ctx, args, "")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RunQuiet executes az without logging the arguments at all. Use it for
// invocations whose argument values are secrets.
func (c *CLI) RunQuiet(ctx context.Context, args ...string) error {
	_, err := c.exec.run(ctx, args, "")
	return err
}

// RunJSON executes az with --output json appended and unmarshals stdout
// into v.
func (c *CLI) RunJSON(ctx context.Context, v any, args ...string) error {
	out, err := c.Run(ctx, append(args, "--output", "json")...)
	if err != nil {
		return err
	}
	if out == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		return fmt.Errorf("parsing az output: %w", err)
	}
	return nil
}

// =============================================================================
// Account Facts
// =============================================================================

// AccountInfo identifies the signed-in Azure subscription.
type AccountInfo struct {
	SubscriptionID string `json:"id"`
	TenantID       string `json:"tenantId"`
}

// AccountInfo returns the active subscription and tenant.
func (c *CLI) AccountInfo(ctx context.Context) (AccountInfo, error) {
	var info AccountInfo
	if err := c.RunJSON(ctx, &info, "account", "show"); err != nil {
		return AccountInfo{}, err
	}
	return info, nil
}

// LoggedIn reports whether an Azure session is active.
func (c *CLI) LoggedIn(ctx context.Context) bool {
	_, err := c.Run(ctx, "account", "show", "--query", "id", "-o", "tsv")
	return err == nil
}

// AppClientIDByDisplayName looks up an app registration's client ID. Returns
// empty when no app matches.
func (c *CLI) AppClientIDByDisplayName(ctx context.Context, displayName string) (string, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return "", nil
	}
	var apps []struct {
		AppID string `json:"appId"`
	}
	if err := c.RunJSON(ctx, &apps, "ad", "app", "list", "--display-name", displayName, "--query", "[].{appId:appId}"); err != nil {
		return "", err
	}
	if len(apps) == 0 {
		return "", nil
	}
	return apps[0].AppID, nil
}

// ServicePrincipalObjectID resolves a client ID to its service principal
// object ID. Returns empty when the principal does not exist.
func (c *CLI) ServicePrincipalObjectID(ctx context.Context, clientID string) (string, error) {
	if clientID == "" {
		return "", nil
	}
	out, err := c.Run(ctx, "ad", "sp", "show", "--id", clientID, "--query", "id", "-o", "tsv")
	if err != nil {
		return "", err
	}
	return out, nil
}

// sleepCtx waits for d or until the context is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
