package envschema

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Sources and Provenance
// =============================================================================

// Provenance records which source supplied a resolved value.
type Provenance string

const (
	ProvenanceOverride    Provenance = "override"     // explicit per-key override
	ProvenanceProcessEnv  Provenance = "process_env"  // process environment
	ProvenanceDeployFile  Provenance = "deploy_file"  // .env.deploy
	ProvenanceRuntimeFile Provenance = "runtime_file" // .env
	ProvenanceDefault     Provenance = "default"      // schema default
	ProvenanceMerged      Provenance = "merged"       // pre-merged context view
)

// Source is one layer of key/value pairs feeding resolution.
//
// Strict sources reject keys absent from the schema (the env files).
// Non-strict sources are filtered to schema keys silently (process env,
// per-key overrides). Target, when set, scopes which mandatory keys the
// source set is expected to satisfy.
type Source struct {
	Provenance Provenance
	Target     Target
	Strict     bool
	Values     map[string]string
}

// StandardSources builds the canonical precedence chain:
// override > process env > deploy file > runtime file.
// Nil maps are allowed and yield empty layers.
func StandardSources(override, processEnv, deployFile, runtimeFile map[string]string) []Source {
	return []Source{
		{Provenance: ProvenanceOverride, Values: override},
		{Provenance: ProvenanceProcessEnv, Values: processEnv},
		{Provenance: ProvenanceDeployFile, Target: TargetDeployFile, Strict: true, Values: deployFile},
		{Provenance: ProvenanceRuntimeFile, Target: TargetRuntimeFile, Strict: true, Values: runtimeFile},
	}
}

// MergeSources flattens sources into a plain map without validating it,
// first non-empty value in precedence order winning. Strict sources keep
// every key they carry, including ones the schema does not declare, so a
// later validation pass can still reject them; non-strict sources are
// filtered to schema keys the same way Resolve filters them.
//
// This is the raw view handed to callers that need to inspect or edit the
// environment before validation runs.
func MergeSources(schema *Schema, sources []Source) map[string]string {
	merged := make(map[string]string)
	for _, src := range sources {
		for k, v := range src.Values {
			if !src.Strict {
				if _, ok := schema.Lookup(k); !ok {
					continue
				}
			}
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, taken := merged[k]; taken {
				continue
			}
			merged[k] = v
		}
	}
	return merged
}

// =============================================================================
// Resolved Environment
// =============================================================================

// Value is a resolved value plus where it came from.
type Value struct {
	Value      string
	Provenance Provenance
}

// ResolvedEnv maps key names to resolved values with provenance.
type ResolvedEnv struct {
	values map[string]Value
}

// Get returns the resolved value for a key, or "" when absent.
func (r ResolvedEnv) Get(key string) string {
	return r.values[key].Value
}

// Lookup returns the resolved value and whether the key is present.
func (r ResolvedEnv) Lookup(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the present key names, sorted.
func (r ResolvedEnv) Keys() []string {
	out := make([]string, 0, len(r.values))
	for k := range r.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Map returns a plain key -> value copy.
func (r ResolvedEnv) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v.Value
	}
	return out
}

// =============================================================================
// Resolution
// =============================================================================

// Resolve merges sources highest-precedence-first and validates the result
// against the schema. An empty string is treated as absent at every layer.
//
// Failure modes, all reported together in one *ValidationError:
//   - a strict source contains a key the schema does not declare
//   - a mandatory key in scope has no value after defaults
//
// Mandatory keys are in scope when their target set intersects the targets
// of the supplied sources; a key allowed only in, say, a CI secret is never
// demanded from file-based resolution.
func Resolve(schema *Schema, sources []Source) (ResolvedEnv, error) {
	context := schema.Name()

	var problems []string
	var category error

	// Strict sources must not carry undeclared keys.
	var unknown []string
	for _, src := range sources {
		if !src.Strict {
			continue
		}
		for k := range src.Values {
			if _, ok := schema.Lookup(k); !ok {
				unknown = append(unknown, k)
			}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		problems = append(problems, "Unknown key(s): "+strings.Join(unknown, ", "))
		category = ErrUnknownKeys
	}

	// Merge: first non-empty value in precedence order wins.
	values := make(map[string]Value)
	for _, src := range sources {
		for k, v := range src.Values {
			if _, ok := schema.Lookup(k); !ok {
				continue
			}
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, taken := values[k]; taken {
				continue
			}
			values[k] = Value{Value: v, Provenance: src.Provenance}
		}
	}

	// Schema defaults fill remaining gaps.
	for _, spec := range schema.Specs() {
		if !spec.HasDefault {
			continue
		}
		if _, ok := values[spec.Name]; ok {
			continue
		}
		values[spec.Name] = Value{Value: spec.Default, Provenance: ProvenanceDefault}
	}

	// Mandatory keys in target scope must have values.
	scope := sourceTargets(sources)
	var missing []string
	for _, spec := range schema.Specs() {
		if !spec.Mandatory {
			continue
		}
		if !targetsIntersect(spec.Targets, scope) {
			continue
		}
		if v, ok := values[spec.Name]; !ok || strings.TrimSpace(v.Value) == "" {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		problems = append(problems, "Missing mandatory key(s): "+strings.Join(missing, ", "))
		if category == nil {
			category = ErrMissingKeys
		}
	}

	if len(problems) > 0 {
		return ResolvedEnv{}, NewValidationError(context, problems, category)
	}
	return ResolvedEnv{values: values}, nil
}

// sourceTargets collects the declared targets of the given sources.
// Sources without a target (overrides, process env) widen the scope to the
// file targets they stand in for, so mandatory file keys stay demanded even
// when no file source is supplied.
func sourceTargets(sources []Source) []Target {
	seen := map[Target]bool{}
	var out []Target
	add := func(t Target) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, src := range sources {
		if src.Target != "" {
			add(src.Target)
			continue
		}
		add(TargetRuntimeFile)
		add(TargetDeployFile)
	}
	return out
}

func targetsIntersect(a, b []Target) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// Cross-field Rules
// =============================================================================

// ValidateCrossFieldRules checks constraints spanning multiple keys that
// mandatory/default flags alone cannot express.
func ValidateCrossFieldRules(env ResolvedEnv, context string) error {
	var problems []string

	if Truthy(env.Get(KeyGHCRPrivate)) {
		// Private registry images need pull credentials.
		if strings.TrimSpace(env.Get(KeyGHCRUsername)) == "" {
			problems = append(problems, fmt.Sprintf("%s is required when %s=true", KeyGHCRUsername, KeyGHCRPrivate))
		}
		if strings.TrimSpace(env.Get(KeyGHCRToken)) == "" {
			problems = append(problems, fmt.Sprintf("%s is required when %s=true", KeyGHCRToken, KeyGHCRPrivate))
		}
	}

	if len(problems) > 0 {
		return NewValidationError(context, problems, ErrCrossField)
	}
	return nil
}

// Truthy reports whether a config value means "enabled".
func Truthy(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
