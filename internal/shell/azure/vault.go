package azure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// =============================================================================
// Key Vault Secrets
// =============================================================================

// VaultConfig tunes the access-denied retry loop on secret writes. Role
// assignments take minutes to propagate, so a vault created moments ago
// rejects its first writes.
type VaultConfig struct {
	// Attempts bounds the write retries. Default: 20.
	Attempts int

	// BaseDelay is the first retry delay; it grows by half per attempt up
	// to CapDelay. Defaults: 3 seconds and 20 seconds.
	BaseDelay time.Duration
	CapDelay  time.Duration
}

// DefaultVaultConfig returns the default configuration.
func DefaultVaultConfig() VaultConfig {
	return VaultConfig{
		Attempts:  20,
		BaseDelay: 3 * time.Second,
		CapDelay:  20 * time.Second,
	}
}

// Vault reads and writes Key Vault secrets.
type Vault struct {
	cli *CLI
	cfg VaultConfig
	log *slog.Logger
}

// NewVault creates a Vault. Zero config fields fall back to defaults.
func NewVault(cli *CLI, cfg VaultConfig, log *slog.Logger) *Vault {
	def := DefaultVaultConfig()
	if cfg.Attempts == 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.CapDelay == 0 {
		cfg.CapDelay = def.CapDelay
	}
	if log == nil {
		log = slog.Default()
	}
	return &Vault{cli: cli, cfg: cfg, log: log.With("component", "azure")}
}

// SetSecret writes one secret, retrying while RBAC propagation lag makes the
// vault reject the caller. The invocation is never logged with its
// arguments; the value would land in the log line.
func (v *Vault) SetSecret(ctx context.Context, vaultName, secretName, value string) error {
	vaultName = strings.TrimSpace(vaultName)
	secretName = strings.TrimSpace(secretName)
	if vaultName == "" || secretName == "" {
		return errors.New("vault and secret names are required")
	}

	v.log.Info("setting vault secret", "vault", vaultName, "secret", secretName)

	delay := v.cfg.BaseDelay
	for attempt := 1; ; attempt++ {
		err := v.cli.RunQuiet(ctx, "keyvault", "secret", "set",
			"--vault-name", vaultName, "--name", secretName,
			"--value", value, "--output", "none")
		if err == nil {
			return nil
		}
		if !accessDenied(err) || attempt >= v.cfg.Attempts {
			return fmt.Errorf("setting secret %s in vault %s: %w", secretName, vaultName, err)
		}

		v.log.Warn("vault write denied, waiting for rbac propagation",
			"vault", vaultName, "attempt", attempt, "delay", delay)
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
		delay = delay * 3 / 2
		if delay > v.cfg.CapDelay {
			delay = v.cfg.CapDelay
		}
	}
}

// GetSecret reads one secret's value. Returns empty without error when the
// secret does not exist.
func (v *Vault) GetSecret(ctx context.Context, vaultName, secretName string) (string, error) {
	out, err := v.cli.Run(ctx, "keyvault", "secret", "show",
		"--vault-name", vaultName, "--name", secretName,
		"--query", "value", "-o", "tsv")
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "SecretNotFound") {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// Reachable probes the vault's data plane with a minimal list call.
func (v *Vault) Reachable(ctx context.Context, vaultName string) bool {
	if vaultName == "" {
		return false
	}
	err := v.cli.RunQuiet(ctx, "keyvault", "secret", "list",
		"--vault-name", vaultName, "--maxresults", "1", "--output", "none")
	if err != nil {
		v.log.Warn("key vault data plane unreachable", "vault", vaultName, "error", err)
		return false
	}
	return true
}

// accessDenied matches the errors RBAC propagation lag produces.
func accessDenied(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return strings.Contains(cmdErr.Stderr, "Forbidden") ||
		strings.Contains(cmdErr.Stderr, "Unauthorized") ||
		strings.Contains(cmdErr.Stderr, "Caller is not authorized")
}
