package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/shipway/internal/core/deploy"
	"github.com/artpar/shipway/internal/core/envschema"
	"github.com/artpar/shipway/internal/shell/azure"
)

// uploadEnvCmd stores runtime env content as a single Key Vault secret, the
// one the container fetches at startup. The file is validated against the
// runtime schema first so a broken env never reaches the vault.
func uploadEnvCmd(args []string, cfg *Config, log *slog.Logger) int {
	fs := flag.NewFlagSet("upload-env", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	vault := fs.String("vault", "", "Key Vault name (default: derived from AZURE_RESOURCE_GROUP)")
	envFile := fs.String("env-file", defaultRuntimeEnvFile, "runtime env file to upload")
	secretName := fs.String("secret-name", "env", "Key Vault secret name")
	prefixes := fs.String("prefixes", "BASIC_AUTH_", "comma-separated key prefixes to include")
	raw := fs.Bool("raw", false, "upload the full file content, ignoring prefixes")
	deployEnvFile := fs.String("deploy-env-file", defaultDeployEnvFile, "deploy env file for vault name derivation")
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}

	if base := filepath.Base(*envFile); base == ".env.deploy" || base == "env.deploy" {
		fmt.Fprintf(os.Stderr, "refusing to upload deploy-only env file %s; runtime settings belong in .env\n", *envFile)
		return ExitUsageError
	}

	ws := discoverWorkspace(log)

	vals, content, err := readEnvFile(ws.Root, *envFile, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}

	if _, err := envschema.Resolve(envschema.RuntimeSchema(), []envschema.Source{{
		Provenance: envschema.ProvenanceRuntimeFile,
		Target:     envschema.TargetRuntimeFile,
		Strict:     true,
		Values:     vals,
	}}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitValidationError
	}

	vaultName := *vault
	if vaultName == "" {
		deployVals, _, err := readEnvFile(ws.Root, *deployEnvFile, false)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return ExitConfigError
		}
		rg := deployVals[envschema.KeyAzureResourceGroup]
		if rg == "" {
			rg = os.Getenv(envschema.KeyAzureResourceGroup)
		}
		if rg == "" {
			fmt.Fprintln(os.Stderr, "no vault name: pass -vault or set AZURE_RESOURCE_GROUP")
			return ExitUsageError
		}
		vaultName = deploy.KeyVaultName(rg)
	}

	filtered := filterEnvContent(content, splitPrefixes(*prefixes), *raw)
	if len(filtered) == 0 {
		fmt.Fprintf(os.Stderr, "nothing to upload: no keys in %s match prefixes %s\n", *envFile, *prefixes)
		return ExitConfigError
	}

	v := azure.NewVault(azure.New(log), azure.VaultConfig{}, log)
	if err := v.SetSecret(context.Background(), vaultName, *secretName, string(filtered)); err != nil {
		log.Error("upload failed", "vault", vaultName, "secret", *secretName, "error", err)
		return ExitRunError
	}

	fmt.Printf("uploaded secret %q to vault %q\n", *secretName, vaultName)
	return ExitSuccess
}

// filterEnvContent keeps the KEY=VALUE lines whose key starts with one of
// the prefixes. Raw mode passes the content through untouched. Comments and
// blank lines never survive filtering; they may carry deploy-only context.
func filterEnvContent(content []byte, prefixes []string, raw bool) []byte {
	if raw || len(prefixes) == 0 {
		return content
	}
	var keep []string
	for _, line := range strings.Split(strings.TrimRight(string(content), "\n"), "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}
		key, _, ok := strings.Cut(stripped, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				keep = append(keep, line)
				break
			}
		}
	}
	if len(keep) == 0 {
		return nil
	}
	return []byte(strings.Join(keep, "\n") + "\n")
}

// splitPrefixes parses the comma-separated prefix list.
func splitPrefixes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
