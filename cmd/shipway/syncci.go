package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/artpar/shipway/internal/core/envschema"
	"github.com/artpar/shipway/internal/shell/azure"
	"github.com/artpar/shipway/internal/shell/cisync"
)

// defaultOIDCAppName is the Azure AD app registration the CI workflow logs in
// with. When the deploy env carries no AZURE_CLIENT_ID the command looks the
// ID up by this display name.
const defaultOIDCAppName = "github-actions-aci-deploy"

func syncCICmd(args []string, cfg *Config, log *slog.Logger) int {
	fs := flag.NewFlagSet("sync-ci", flag.ContinueOnError)
	repoFlag := fs.String("repo", "", "GitHub repository in owner/repo form (default: detected from origin)")
	envFile := fs.String("env-file", defaultRuntimeEnvFile, "runtime env file pushed whole as the RUNTIME_ENV_DOTENV secret")
	deployEnvFile := fs.String("deploy-env-file", defaultDeployEnvFile, "deploy env file providing variables and secrets")
	dryRun := fs.Bool("dry-run", false, "log what would be pushed without writing anything")
	clientID := fs.String("azure-client-id", "", "explicit AZURE_CLIENT_ID, skips the app registration lookup")
	appName := fs.String("azure-app-name", defaultOIDCAppName, "app registration display name for the AZURE_CLIENT_ID lookup")
	autoFill := fs.Bool("auto-fill-azure-ids", true, "fill missing Azure IDs from the local az session")
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}

	ctx := context.Background()
	ws := discoverWorkspace(log)

	runtimeVals, runtimeRaw, err := readEnvFile(ws.Root, *envFile, true)
	if err != nil {
		log.Error("read runtime env file", "error", err)
		return ExitConfigError
	}
	deployVals, _, err := readEnvFile(ws.Root, *deployEnvFile, true)
	if err != nil {
		log.Error("read deploy env file", "error", err)
		return ExitConfigError
	}

	// Validate both files before pushing anything, so a bad dotenv never
	// half-syncs the repository.
	sources := envschema.StandardSources(nil, processEnvValues(), deployVals, runtimeVals)
	env, err := envschema.Resolve(envschema.CombinedSchema(), sources)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return ExitValidationError
	}
	if err := envschema.ValidateCrossFieldRules(env, fmt.Sprintf("deploy (%s + env)", *deployEnvFile)); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return ExitValidationError
	}

	cli := cisync.New(log)
	repo := strings.TrimSpace(*repoFlag)
	if repo == "" {
		repo, err = cli.DetectRepo(ctx, ws.Origin)
		if err != nil {
			log.Error("detect repository", "error", err)
			return ExitConfigError
		}
	}

	values := env.Map()
	if *clientID != "" {
		values[envschema.KeyAzureClientID] = strings.TrimSpace(*clientID)
	}
	if *autoFill {
		fillAzureIDs(ctx, azure.New(log), values, *appName, log)
	}
	if missing := missingOIDCKeys(values); len(missing) > 0 {
		log.Error("missing Azure OIDC values needed by the CI workflow",
			"keys", strings.Join(missing, ", "),
			"hint", "set them in "+*deployEnvFile+" or pass -azure-client-id")
		return ExitValidationError
	}

	items := cisync.Plan(envschema.CombinedSchema(), values, string(runtimeRaw))
	pushed, err := cisync.NewSyncer(cli, log).Push(ctx, repo, items, *dryRun)
	if err != nil {
		log.Error("sync aborted", "pushed", pushed, "of", len(items), "error", err)
		return ExitRunError
	}

	if *dryRun {
		fmt.Printf("dry-run: %d item(s) would be pushed to %s\n", pushed, repo)
	} else {
		fmt.Printf("pushed %d item(s) to %s\n", pushed, repo)
	}
	return ExitSuccess
}

// fillAzureIDs completes the three CI login identifiers from the local az
// session: tenant and subscription from the active account, the client ID by
// app registration display name. Lookup failures only warn; the required-key
// check afterwards reports what is still missing.
func fillAzureIDs(ctx context.Context, az *azure.CLI, values map[string]string, appName string, log *slog.Logger) {
	if values[envschema.KeyAzureTenantID] == "" || values[envschema.KeyAzureSubscriptionID] == "" {
		info, err := az.AccountInfo(ctx)
		if err != nil {
			log.Warn("az account show failed, cannot auto-fill tenant/subscription", "error", err)
		} else {
			if values[envschema.KeyAzureTenantID] == "" && info.TenantID != "" {
				values[envschema.KeyAzureTenantID] = info.TenantID
				log.Info("filled AZURE_TENANT_ID from az account show")
			}
			if values[envschema.KeyAzureSubscriptionID] == "" && info.SubscriptionID != "" {
				values[envschema.KeyAzureSubscriptionID] = info.SubscriptionID
				log.Info("filled AZURE_SUBSCRIPTION_ID from az account show")
			}
		}
	}

	if values[envschema.KeyAzureClientID] == "" && appName != "" {
		id, err := az.AppClientIDByDisplayName(ctx, appName)
		if err != nil {
			log.Warn("app registration lookup failed", "display_name", appName, "error", err)
		} else if id != "" {
			values[envschema.KeyAzureClientID] = id
			log.Info("filled AZURE_CLIENT_ID from app registration", "display_name", appName)
		}
	}
}

func missingOIDCKeys(values map[string]string) []string {
	var missing []string
	for _, key := range []string{envschema.KeyAzureClientID, envschema.KeyAzureTenantID, envschema.KeyAzureSubscriptionID} {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
