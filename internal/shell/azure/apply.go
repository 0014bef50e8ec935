package azure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artpar/shipway/internal/core/deploy"
	"github.com/artpar/shipway/internal/core/render"
)

// =============================================================================
// Container Group Applier
// =============================================================================

// ApplierConfig tunes the delete-wait-create cycle.
type ApplierConfig struct {
	// DeleteWait bounds how long to wait for a previous container group to
	// finish deleting. Default: 2 minutes.
	DeleteWait time.Duration

	// PollInterval is the delete-poll cadence. Default: 5 seconds.
	PollInterval time.Duration

	// CreateAttempts bounds creation retries on transient registry
	// conflicts. Default: 5.
	CreateAttempts int

	// RetryBase is the first retry delay; it doubles per attempt up to
	// RetryCap. Defaults: 10 seconds and 60 seconds.
	RetryBase time.Duration
	RetryCap  time.Duration
}

// DefaultApplierConfig returns the default configuration.
func DefaultApplierConfig() ApplierConfig {
	return ApplierConfig{
		DeleteWait:     2 * time.Minute,
		PollInterval:   5 * time.Second,
		CreateAttempts: 5,
		RetryBase:      10 * time.Second,
		RetryCap:       60 * time.Second,
	}
}

// Applier deploys one rendered descriptor as an ACI container group.
//
// ACI updates are not reliable for identity or environment changes, so the
// group is recreated: delete the previous group, wait until it is actually
// gone (deleting too fast yields Conflict on create), then create from the
// descriptor file with backoff on transient registry errors.
type Applier struct {
	cli *CLI
	cfg ApplierConfig
	log *slog.Logger
}

// NewApplier creates an Applier. Zero config fields fall back to defaults.
func NewApplier(cli *CLI, cfg ApplierConfig, log *slog.Logger) *Applier {
	def := DefaultApplierConfig()
	if cfg.DeleteWait == 0 {
		cfg.DeleteWait = def.DeleteWait
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.CreateAttempts == 0 {
		cfg.CreateAttempts = def.CreateAttempts
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.RetryCap == 0 {
		cfg.RetryCap = def.RetryCap
	}
	if log == nil {
		log = slog.Default()
	}
	return &Applier{cli: cli, cfg: cfg, log: log.With("component", "azure")}
}

// Apply recreates the unit's container group from the written descriptor.
func (a *Applier) Apply(ctx context.Context, plan *deploy.Plan, artifact render.Artifact, path string) (deploy.ApplyResult, error) {
	rg := plan.ResourceGroup
	name := artifact.Unit

	if err := a.deleteAndWait(ctx, rg, name); err != nil {
		return deploy.ApplyResult{}, err
	}
	if err := a.createWithRetry(ctx, rg, name, path); err != nil {
		return deploy.ApplyResult{}, err
	}
	return a.describe(ctx, plan, artifact), nil
}

// deleteAndWait removes any previous group and polls until it is gone.
// A group stuck in Deleting past the wait budget is logged and tolerated;
// the create call will surface the conflict if it matters.
func (a *Applier) deleteAndWait(ctx context.Context, rg, name string) error {
	_, err := a.cli.Run(ctx, "container", "delete", "--resource-group", rg, "--name", name, "--yes")
	if err != nil && !errors.Is(err, ErrCommandFailed) {
		return err
	}

	deadline := time.Now().Add(a.cfg.DeleteWait)
	for time.Now().Before(deadline) {
		state, err := a.cli.Run(ctx, "container", "show",
			"--resource-group", rg, "--name", name,
			"--query", "provisioningState", "-o", "tsv")
		if err != nil {
			// Show failing means the group no longer exists, unless the
			// run itself was cancelled out from under the command.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
		a.log.Debug("waiting for previous container group to delete", "unit", name, "state", state)
		if err := sleepCtx(ctx, a.cfg.PollInterval); err != nil {
			return err
		}
	}
	a.log.Warn("previous container group still deleting; proceeding", "unit", name, "waited", a.cfg.DeleteWait)
	return nil
}

// createWithRetry creates the group, backing off on transient registry
// conflicts: base delay doubling per attempt, capped.
func (a *Applier) createWithRetry(ctx context.Context, rg, name, path string) error {
	for attempt := 1; ; attempt++ {
		_, err := a.cli.Run(ctx, "container", "create", "--resource-group", rg, "--file", path)
		if err == nil {
			return nil
		}
		if !transientCreateError(err) || attempt >= a.cfg.CreateAttempts {
			return fmt.Errorf("creating container group %s: %w", name, err)
		}

		delay := a.cfg.RetryBase << (attempt - 1)
		if delay > a.cfg.RetryCap {
			delay = a.cfg.RetryCap
		}
		a.log.Warn("transient registry error creating container group, retrying",
			"unit", name, "attempt", attempt, "delay", delay)
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
}

// containerShow is the slice of az container show output Apply reads back.
type containerShow struct {
	ProvisioningState string `json:"provisioningState"`
	IPAddress         *struct {
		IP   string `json:"ip"`
		FQDN string `json:"fqdn"`
	} `json:"ipAddress"`
}

// describe reads the created group's public coordinates. Lookup failures
// degrade to the FQDN ACI derives from the DNS label.
func (a *Applier) describe(ctx context.Context, plan *deploy.Plan, artifact render.Artifact) deploy.ApplyResult {
	result := deploy.ApplyResult{
		Unit: artifact.Unit,
		FQDN: fmt.Sprintf("%s.%s.azurecontainer.io", artifact.DNSLabel, plan.Location),
	}

	var info containerShow
	err := a.cli.RunJSON(ctx, &info, "container", "show",
		"--resource-group", plan.ResourceGroup, "--name", artifact.Unit)
	if err != nil {
		a.log.Warn("container group created but show failed", "unit", artifact.Unit, "error", err)
		return result
	}

	result.State = info.ProvisioningState
	if info.IPAddress != nil {
		result.IP = info.IPAddress.IP
		if info.IPAddress.FQDN != "" {
			result.FQDN = info.IPAddress.FQDN
		}
	}
	return result
}

// transientCreateError matches the registry conflicts ACI throws when images
// are pulled from multiple registries or the previous group lingers.
func transientCreateError(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return strings.Contains(cmdErr.Stderr, "RegistryErrorResponse") ||
		strings.Contains(cmdErr.Stderr, "Conflict")
}
