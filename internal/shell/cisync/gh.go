// Package cisync pushes deployment configuration into GitHub Actions
// variables and secrets through the gh CLI, so the deploy workflow can run
// in CI. Which keys go where is a schema decision - every key declares its
// CI targets - never a name heuristic.
package cisync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ghExec runs one gh invocation and returns its standard output.
// It exists so tests can script gh behavior without the binary.
type ghExec interface {
	run(ctx context.Context, args []string) (string, error)
}

// systemExec invokes the real gh binary.
type systemExec struct{}

func (systemExec) run(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)

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

// CLI invokes the GitHub CLI. Construct with New; the zero value panics on
// use.
type CLI struct {
	exec ghExec
	log  *slog.Logger
}

// New creates a CLI that shells out to gh.
func New(log *slog.Logger) *CLI {
	if log == nil {
		log = slog.Default()
	}
	return &CLI{exec: systemExec{}, log: log.With("component", "cisync")}
}

// Check verifies the gh binary is available.
func (c *CLI) Check() error {
	if _, err := exec.LookPath("gh"); err != nil {
		return fmt.Errorf("%w: install it and run gh auth login", ErrCLINotFound)
	}
	return nil
}

// Run executes gh with the given arguments and returns trimmed stdout.
// The invocation is logged with secret flag values redacted.
func (c *CLI) Run(ctx context.Context, args ...string) (string, error) {
	c.log.Debug("gh", "args", strings.Join(redactArgs(args), " "))
	out, err := c.exec.run(ctx, args)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// DetectRepo resolves the owner/repo slug of the current checkout. The
// origin remote is resolved first so forks do not silently target upstream.
func (c *CLI) DetectRepo(ctx context.Context, originURL string) (string, error) {
	if originURL != "" {
		repo, err := c.Run(ctx, "repo", "view", originURL, "--json", "nameWithOwner", "-q", ".nameWithOwner")
		if err == nil && repo != "" {
			return repo, nil
		}
	}

	repo, err := c.Run(ctx, "repo", "view", "--json", "nameWithOwner", "-q", ".nameWithOwner")
	if err != nil {
		return "", fmt.Errorf("%w: pass --repo or run inside a github checkout", ErrNoRepo)
	}
	if repo == "" {
		return "", ErrNoRepo
	}
	return repo, nil
}

// SetVariable sets a GitHub Actions variable on the repository.
func (c *CLI) SetVariable(ctx context.Context, repo, name, value string) error {
	_, err := c.Run(ctx, "variable", "set", name, "-R", repo, "-b", value)
	return err
}

// SetSecret sets a GitHub Actions secret on the repository.
func (c *CLI) SetSecret(ctx context.Context, repo, name, value string) error {
	_, err := c.Run(ctx, "secret", "set", name, "-R", repo, "-b", value)
	return err
}
