package cisync

import (
	"context"
	"log/slog"
	"strings"

	"github.com/artpar/shipway/internal/core/envschema"
)

// =============================================================================
// Sync Planning
// =============================================================================

// Item is one variable or secret to push.
type Item struct {
	Name   string
	Value  string
	Secret bool
}

// Plan computes the items to push: every schema key carrying a CI target and
// a non-empty value, in schema order, plus the whole runtime dotenv as the
// RUNTIME_ENV_DOTENV secret. A key declaring both CI targets yields both a
// variable and a secret, mirroring its declaration.
func Plan(schema *envschema.Schema, values map[string]string, runtimeDotenv string) []Item {
	var items []Item
	for _, spec := range schema.Specs() {
		if spec.Name == envschema.KeyRuntimeEnvDotenv {
			if strings.TrimSpace(runtimeDotenv) != "" {
				items = append(items, Item{Name: spec.Name, Value: runtimeDotenv, Secret: true})
			}
			continue
		}

		val := strings.TrimSpace(values[spec.Name])
		if val == "" {
			continue
		}
		if spec.AllowsTarget(envschema.TargetCIVariable) {
			items = append(items, Item{Name: spec.Name, Value: val, Secret: false})
		}
		if spec.AllowsTarget(envschema.TargetCISecret) {
			items = append(items, Item{Name: spec.Name, Value: val, Secret: true})
		}
	}
	return items
}

// =============================================================================
// Syncer
// =============================================================================

// Syncer pushes planned items to a repository.
type Syncer struct {
	cli *CLI
	log *slog.Logger
}

// NewSyncer creates a Syncer on top of a gh CLI.
func NewSyncer(cli *CLI, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{cli: cli, log: log.With("component", "cisync")}
}

// Push applies the items to the repository, stopping at the first failure.
// It returns how many items were pushed. Under dryRun nothing is written and
// every item counts as pushed. Secret values never reach the log.
func (s *Syncer) Push(ctx context.Context, repo string, items []Item, dryRun bool) (int, error) {
	pushed := 0
	for _, item := range items {
		kind := "variable"
		if item.Secret {
			kind = "secret"
		}
		if dryRun {
			s.log.Info("would set "+kind, "name", item.Name, "repo", repo)
			pushed++
			continue
		}

		var err error
		if item.Secret {
			err = s.cli.SetSecret(ctx, repo, item.Name, item.Value)
		} else {
			err = s.cli.SetVariable(ctx, repo, item.Name, item.Value)
		}
		if err != nil {
			return pushed, err
		}
		s.log.Info("set "+kind, "name", item.Name, "repo", repo)
		pushed++
	}
	return pushed, nil
}
