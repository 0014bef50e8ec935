package deploy

import (
	"sort"
	"strings"

	"github.com/artpar/shipway/internal/core/envschema"
)

// =============================================================================
// Environment View
// =============================================================================

// EnvView is the mutable environment a lifecycle run threads through its
// stages. Hooks mutate it and every later stage observes the mutation. It is
// owned by exactly one run; the accessors exist so a future concurrent caller
// has a single place to add synchronization, not because one is needed now.
type EnvView struct {
	values map[string]string
}

// NewEnvView builds a view over a copy of the given values.
func NewEnvView(values map[string]string) *EnvView {
	v := &EnvView{values: make(map[string]string, len(values))}
	for k, val := range values {
		v.values[k] = val
	}
	return v
}

// NewEnvViewFromResolved builds a view from resolver output.
func NewEnvViewFromResolved(env envschema.ResolvedEnv) *EnvView {
	return NewEnvView(env.Map())
}

// Get returns the value for a key, or "" when absent.
func (v *EnvView) Get(key string) string {
	return v.values[key]
}

// Lookup returns the value and whether the key is present with a non-empty
// value. Empty means absent, same as everywhere else in resolution.
func (v *EnvView) Lookup(key string) (string, bool) {
	val, ok := v.values[key]
	if !ok || strings.TrimSpace(val) == "" {
		return "", false
	}
	return val, true
}

// Set stores a value. Setting the empty string removes the key.
func (v *EnvView) Set(key, value string) {
	if value == "" {
		delete(v.values, key)
		return
	}
	v.values[key] = value
}

// Delete removes a key.
func (v *EnvView) Delete(key string) {
	delete(v.values, key)
}

// Keys returns the present key names, sorted.
func (v *EnvView) Keys() []string {
	out := make([]string, 0, len(v.values))
	for k := range v.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Truthy reports whether the key holds an enabled-flag value.
func (v *EnvView) Truthy(key string) bool {
	return envschema.Truthy(v.values[key])
}

// Snapshot returns a copy of the current values.
func (v *EnvView) Snapshot() map[string]string {
	out := make(map[string]string, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

// Restore replaces the view's contents with a previous Snapshot.
func (v *EnvView) Restore(snapshot map[string]string) {
	v.values = make(map[string]string, len(snapshot))
	for k, val := range snapshot {
		v.values[k] = val
	}
}
