package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/shipway/internal/core/crypto"
	"github.com/artpar/shipway/internal/core/envschema"
	"github.com/artpar/shipway/internal/shell/gitinfo"
	"github.com/artpar/shipway/internal/shell/history"
)

// Default locations, relative to the repo root.
const (
	defaultManifestPath   = "docker/docker-compose.yml"
	defaultRuntimeEnvFile = ".env"
	defaultDeployEnvFile  = ".env.deploy"
)

// =============================================================================
// Workspace Discovery
// =============================================================================

// workspace anchors every relative path a command touches. Commands run from
// anywhere inside a checkout; the repo root is what file locations and
// history records are relative to.
type workspace struct {
	Root     string
	Revision string
	Origin   string
}

// discoverWorkspace locates the enclosing git repository. Outside a
// repository the current directory stands in, with no revision recorded.
func discoverWorkspace(log *slog.Logger) workspace {
	info, err := gitinfo.Describe(".")
	if err == nil {
		return workspace{Root: info.Root, Revision: info.Revision, Origin: info.Origin}
	}
	if !errors.Is(err, gitinfo.ErrNotRepository) {
		log.Warn("git repository detection failed, using working directory", "error", err)
	}
	wd, wdErr := os.Getwd()
	if wdErr != nil {
		wd = "."
	}
	return workspace{Root: wd}
}

// resolvePath anchors a relative path at the workspace root.
func resolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// =============================================================================
// Env File Reading
// =============================================================================

// readEnvFile reads and parses a dotenv file. A missing file is tolerated
// when the path was a default, and an error when the caller asked for it
// explicitly; the raw bytes come back alongside the values for write-back
// and upload use.
func readEnvFile(root, path string, explicit bool) (map[string]string, []byte, error) {
	full := resolvePath(root, path)
	content, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("reading env file %s: %w", full, err)
	}
	values, err := envschema.ParseDotenv(content)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing env file %s: %w", full, err)
	}
	return values, content, nil
}

// processEnvValues returns the process environment as a map.
func processEnvValues() map[string]string {
	environ := os.Environ()
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

// =============================================================================
// Flag Helpers
// =============================================================================

// stringList collects repeatable string flags.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// parseOverrides turns -set KEY=VALUE pairs into an override map.
func parseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid -set %q, expected KEY=VALUE", pair)
		}
		out[k] = v
	}
	return out, nil
}

// flagWasSet reports whether the named flag appeared on the command line,
// distinguishing an explicit default from an implicit one.
func flagWasSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// =============================================================================
// History Store Access
// =============================================================================

// openHistory opens the configured run history store, creating the database
// directory on first use. Returns nil when history is disabled.
func openHistory(cfg *Config, root string) (*history.Store, error) {
	if cfg.History.Path == "" {
		return nil, nil
	}
	dsn := resolvePath(root, cfg.History.Path)
	if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return history.Open(dsn)
}

// historyKey derives the snapshot encryption key from config. Nil when no
// passphrase is set, which disables env snapshots and provisioned-key reads.
func historyKey(cfg *Config) []byte {
	if cfg.History.Key == "" {
		return nil
	}
	return crypto.DeriveKey(cfg.History.Key)
}
