package hooks

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// Registry
// =============================================================================

// Registry holds compiled-in hook sets addressable by name. It satisfies
// Loader for bare-name references, so a binary can ship its own hook units
// without an external plugin build.
type Registry struct {
	mu   sync.RWMutex
	sets map[string]Hooks
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]Hooks)}
}

// Register adds a named hook set. Names are unique; registering a name
// twice is a wiring bug and is rejected.
func (r *Registry) Register(name string, h Hooks) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("hook set name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sets[name]; dup {
		return fmt.Errorf("hook set %q already registered", name)
	}
	r.sets[name] = h
	return nil
}

// Load implements Loader for registered names. An empty ref resolves to no
// hooks at all: a registry has no conventional default slot.
func (r *Registry) Load(name string) (Hooks, error) {
	if name == "" {
		return Hooks{}, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sets[name]
	if !ok {
		known := make([]string, 0, len(r.sets))
		for k := range r.sets {
			known = append(known, k)
		}
		sort.Strings(known)
		return Hooks{}, NewLoadError(name,
			fmt.Errorf("not a registered hook set (registered: %s)", strings.Join(known, ", ")))
	}
	return h, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sets))
	for k := range r.sets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
