// Package hookload resolves hook unit references into loaded hook sets.
package hookload

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/shipway/internal/core/hooks"
)

// DefaultRelPath is where a repository conventionally keeps its built hook
// unit, relative to the repo root.
const DefaultRelPath = "deploy/hooks.so"

// Source loads hook units for one repository. It routes path-like refs to
// the Go plugin loader and bare names to the compiled-in registry, and it
// implements hooks.Loader.
type Source struct {
	repoRoot string
	registry *hooks.Registry
	log      *slog.Logger
}

// New creates a Source rooted at the given repository. The registry may be
// nil when the binary ships no compiled-in hook sets.
func New(repoRoot string, registry *hooks.Registry, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{repoRoot: repoRoot, registry: registry, log: log}
}

// Load resolves a hook unit reference.
//
//   - "" tries the conventional default path and quietly loads nothing when
//     no unit is installed there
//   - a path-like ref (contains a separator or ends in .so) is opened as a
//     Go plugin; relative paths resolve against the repo root
//   - anything else is looked up in the compiled-in registry
//
// Except for the missing-default case, every failure is a hard
// hooks.LoadError: a unit the operator named must load.
func (s *Source) Load(ref string) (hooks.Hooks, error) {
	if ref == "" {
		return s.loadDefault()
	}
	if pathLike(ref) {
		return s.loadPlugin(s.pluginPath(ref))
	}
	if s.registry == nil {
		return hooks.Hooks{}, hooks.NewLoadError(ref, errors.New("no compiled-in hook sets registered"))
	}
	return s.registry.Load(ref)
}

func (s *Source) loadDefault() (hooks.Hooks, error) {
	path := filepath.Join(s.repoRoot, DefaultRelPath)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Debug("no hook unit installed", "path", path)
			return hooks.Hooks{}, nil
		}
		return hooks.Hooks{}, hooks.NewLoadError(path, err)
	}
	return s.loadPlugin(path)
}

func (s *Source) pluginPath(ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(s.repoRoot, ref)
}

// pathLike reports whether a ref names a file rather than a registered set.
func pathLike(ref string) bool {
	return strings.HasSuffix(ref, ".so") ||
		strings.ContainsRune(ref, '/') ||
		strings.ContainsRune(ref, os.PathSeparator)
}
