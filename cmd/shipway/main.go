// Package main provides the shipway binary.
//
// Shipway turns a compose-style manifest plus layered dotenv files into
// validated deployment artifacts and applies them to a target platform,
// either Azure Container Instances or a docker host behind a Portainer
// stack webhook.
//
// Usage:
//
//	shipway <command> [flags]
//
// Commands:
//
//	deploy       - Resolve env, build the plan, render artifacts and apply them
//	validate     - Validate .env / .env.deploy against the schemas
//	upload-env   - Upload runtime env content to a Key Vault secret
//	sync-ci      - Push schema keys to GitHub Actions variables/secrets
//	hash         - Generate a bcrypt hash for the sidecar's basic auth
//	provision    - Create a docker+Portainer target host on a cloud provider
//	deprovision  - Destroy a provisioned target host
//	history      - List and inspect recorded deployment runs
//	version      - Show version
package main

import (
	"fmt"
	"log/slog"
	"os"
)

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit codes keep scripting against the binary stable.
const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitUsageError      = 2
	ExitValidationError = 3
	ExitRunError        = 4
	ExitProviderError   = 5
	ExitHistoryError    = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage(os.Stderr)
		return ExitUsageError
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "version", "-version", "--version":
		fmt.Printf("shipway %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	case "help", "-h", "-help", "--help":
		usage(os.Stdout)
		return ExitSuccess
	}

	cfg, err := LoadConfig(os.Getenv("SHIPWAY_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	logger := SetupLogger(cfg)

	return dispatch(cmd, rest, cfg, logger)
}

// dispatch routes a command to its handler.
func dispatch(cmd string, args []string, cfg *Config, log *slog.Logger) int {
	switch cmd {
	case "deploy":
		return deployCmd(args, cfg, log)
	case "validate":
		return validateCmd(args, cfg, log)
	case "upload-env":
		return uploadEnvCmd(args, cfg, log)
	case "sync-ci":
		return syncCICmd(args, cfg, log)
	case "hash":
		return hashCmd(args, cfg, log)
	case "provision":
		return provisionCmd(args, cfg, log)
	case "deprovision":
		return deprovisionCmd(args, cfg, log)
	case "history":
		return historyCmd(args, cfg, log)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		return ExitUsageError
	}
}

func usage(w *os.File) {
	fmt.Fprintf(w, `shipway - deployment plan synthesis and delivery

Usage:
  shipway <command> [flags]

Commands:
  deploy       Resolve env, build the plan, render artifacts and apply them
  validate     Validate .env / .env.deploy against the schemas
  upload-env   Upload runtime env content to a Key Vault secret
  sync-ci      Push schema keys to GitHub Actions variables/secrets
  hash         Generate a bcrypt hash for the sidecar's basic auth
  provision    Create a docker+Portainer target host on a cloud provider
  deprovision  Destroy a provisioned target host
  history      List and inspect recorded deployment runs
  version      Show version

Run "shipway <command> -h" for command flags. Configuration is read from
the file named by SHIPWAY_CONFIG and from SHIPWAY_* environment variables.
`)
}
