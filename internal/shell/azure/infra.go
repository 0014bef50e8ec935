package azure

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artpar/shipway/internal/core/deploy"
)

// =============================================================================
// Infrastructure Bootstrap
// =============================================================================

// Preparer ensures the Azure resources a plan's descriptors reference and
// fills plan.Infra with the facts rendering needs: the managed identity's
// coordinates and the storage account key backing the file shares.
//
// Every step is idempotent, so a single deploy invocation can bootstrap a
// fresh resource group or converge an existing one.
type Preparer struct {
	cli *CLI
	log *slog.Logger
}

// NewPreparer creates a Preparer.
func NewPreparer(cli *CLI, log *slog.Logger) *Preparer {
	if log == nil {
		log = slog.Default()
	}
	return &Preparer{cli: cli, log: log.With("component", "azure")}
}

// Prepare converges resource group, storage account, file shares, key vault
// and managed identity, then records their facts in plan.Infra.
func (p *Preparer) Prepare(ctx context.Context, plan *deploy.Plan) error {
	rg := plan.ResourceGroup
	location := plan.Location
	storage := deploy.StorageAccountName(rg)
	vault := deploy.KeyVaultName(rg)
	identity := deploy.IdentityName(rg)

	p.log.Info("ensuring infrastructure", "resource_group", rg, "location", location)

	if _, err := p.cli.Run(ctx, "group", "create", "--name", rg, "--location", location, "-o", "none"); err != nil {
		return fmt.Errorf("ensuring resource group %s: %w", rg, err)
	}

	storageKey, err := p.ensureStorage(ctx, rg, location, storage, plan.FileShares())
	if err != nil {
		return err
	}

	if err := p.ensureVault(ctx, rg, location, vault); err != nil {
		return err
	}

	identityFacts, err := p.ensureIdentity(ctx, rg, location, identity)
	if err != nil {
		return err
	}
	p.grantVaultAccess(ctx, vault, identityFacts.PrincipalID)

	plan.Infra = deploy.Infra{
		IdentityID:       identityFacts.ID,
		IdentityClientID: identityFacts.ClientID,
		IdentityTenantID: identityFacts.TenantID,
		StorageAccount:   storage,
		StorageKey:       storageKey,
	}
	return nil
}

// ensureStorage converges the storage account and the plan's file shares,
// returning the account key the descriptor mounts shares with.
func (p *Preparer) ensureStorage(ctx context.Context, rg, location, storage string, shares []string) (string, error) {
	_, err := p.cli.Run(ctx, "storage", "account", "create",
		"--name", storage, "--resource-group", rg, "--location", location,
		"--sku", "Standard_LRS", "-o", "none")
	if err != nil {
		return "", fmt.Errorf("ensuring storage account %s: %w", storage, err)
	}

	key, err := p.cli.Run(ctx, "storage", "account", "keys", "list",
		"--account-name", storage, "--resource-group", rg,
		"--query", "[0].value", "-o", "tsv")
	if err != nil {
		return "", fmt.Errorf("reading storage key for %s: %w", storage, err)
	}

	for _, share := range shares {
		err := p.cli.RunQuiet(ctx, "storage", "share", "create",
			"--name", share, "--account-name", storage, "--account-key", key, "-o", "none")
		if err != nil {
			return "", fmt.Errorf("ensuring file share %s: %w", share, err)
		}
	}
	return key, nil
}

// ensureVault creates the key vault unless it already exists. Create is not
// idempotent for vaults (soft-deleted names collide), so existence is
// checked first.
func (p *Preparer) ensureVault(ctx context.Context, rg, location, vault string) error {
	if _, err := p.cli.Run(ctx, "keyvault", "show", "--name", vault, "--query", "name", "-o", "tsv"); err == nil {
		return nil
	}
	_, err := p.cli.Run(ctx, "keyvault", "create",
		"--name", vault, "--resource-group", rg, "--location", location,
		"--enable-rbac-authorization", "true", "-o", "none")
	if err != nil {
		return fmt.Errorf("ensuring key vault %s: %w", vault, err)
	}
	return nil
}

// identityFacts is the slice of az identity output the plan records.
type identityFacts struct {
	ID          string `json:"id"`
	ClientID    string `json:"clientId"`
	TenantID    string `json:"tenantId"`
	PrincipalID string `json:"principalId"`
}

// ensureIdentity converges the user-assigned managed identity. Create is
// idempotent and returns the identity either way.
func (p *Preparer) ensureIdentity(ctx context.Context, rg, location, identity string) (identityFacts, error) {
	var facts identityFacts
	err := p.cli.RunJSON(ctx, &facts, "identity", "create",
		"--name", identity, "--resource-group", rg, "--location", location)
	if err != nil {
		return identityFacts{}, fmt.Errorf("ensuring managed identity %s: %w", identity, err)
	}
	return facts, nil
}

// grantVaultAccess lets the identity read vault secrets at runtime. RBAC
// assignment already existing is the common case, so failures only warn.
func (p *Preparer) grantVaultAccess(ctx context.Context, vault, principalID string) {
	if principalID == "" {
		return
	}
	scope, err := p.cli.Run(ctx, "keyvault", "show", "--name", vault, "--query", "id", "-o", "tsv")
	if err != nil || scope == "" {
		p.log.Warn("cannot resolve vault scope for role assignment", "vault", vault, "error", err)
		return
	}
	_, err = p.cli.Run(ctx, "role", "assignment", "create",
		"--assignee-object-id", principalID,
		"--assignee-principal-type", "ServicePrincipal",
		"--role", "Key Vault Secrets User",
		"--scope", scope, "-o", "none")
	if err != nil {
		p.log.Warn("role assignment for vault access failed", "vault", vault, "error", err)
	}
}
