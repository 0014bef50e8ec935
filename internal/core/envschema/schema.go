// Package envschema declares the deterministic environment key schema and
// resolves layered environment sources against it.
// This is part of the Functional Core - all functions are pure with no I/O.
package envschema

// =============================================================================
// Storage Targets
// =============================================================================

// Target enumerates the locations a key is allowed to live in.
type Target string

const (
	TargetRuntimeFile Target = "runtime_file" // .env
	TargetDeployFile  Target = "deploy_file"  // .env.deploy
	TargetCIVariable  Target = "ci_variable"  // CI actions variable
	TargetCISecret    Target = "ci_secret"    // CI actions secret
	TargetVaultSecret Target = "vault_secret" // key vault secret
)

// Sensitivity classifies a key as a plain variable or a secret.
// Classification is always a schema lookup, never inferred from the name.
type Sensitivity string

const (
	SensitivityVar    Sensitivity = "var"
	SensitivitySecret Sensitivity = "secret"
)

// =============================================================================
// Key Spec
// =============================================================================

// KeySpec describes a single configuration key.
type KeySpec struct {
	Name        string
	Sensitivity Sensitivity
	Mandatory   bool
	Default     string // only meaningful when Mandatory is false and HasDefault is true
	HasDefault  bool
	Targets     []Target
}

// AllowsTarget reports whether the key may live in the given location.
func (s KeySpec) AllowsTarget(t Target) bool {
	for _, allowed := range s.Targets {
		if allowed == t {
			return true
		}
	}
	return false
}

// =============================================================================
// Schema
// =============================================================================

// Schema is an ordered, immutable set of key specs with unique names.
type Schema struct {
	name  string
	specs []KeySpec
	index map[string]int
}

// NewSchema builds a schema, enforcing the structural invariants:
// unique names, no default on mandatory keys, non-empty target sets.
func NewSchema(name string, specs []KeySpec) (*Schema, error) {
	index := make(map[string]int, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, NewSchemaError(name, "key spec with empty name")
		}
		if _, dup := index[spec.Name]; dup {
			return nil, NewSchemaError(name, "duplicate key "+spec.Name)
		}
		if spec.Mandatory && spec.HasDefault {
			return nil, NewSchemaError(name, "mandatory key "+spec.Name+" must not declare a default")
		}
		if len(spec.Targets) == 0 {
			return nil, NewSchemaError(name, "key "+spec.Name+" declares no storage targets")
		}
		index[spec.Name] = i
	}
	out := &Schema{name: name, specs: make([]KeySpec, len(specs)), index: index}
	copy(out.specs, specs)
	return out, nil
}

// mustSchema is used for the built-in schemas, which are defined once per
// process lifetime and validated by the package tests.
func mustSchema(name string, specs []KeySpec) *Schema {
	s, err := NewSchema(name, specs)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema's display name (used in validation reports).
func (s *Schema) Name() string { return s.name }

// Keys returns the key names in declaration order.
func (s *Schema) Keys() []string {
	out := make([]string, len(s.specs))
	for i, spec := range s.specs {
		out[i] = spec.Name
	}
	return out
}

// Specs returns a copy of the key specs in declaration order.
func (s *Schema) Specs() []KeySpec {
	out := make([]KeySpec, len(s.specs))
	copy(out, s.specs)
	return out
}

// Lookup returns the spec for a key name.
func (s *Schema) Lookup(name string) (KeySpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return KeySpec{}, false
	}
	return s.specs[i], true
}

// Classify returns the declared sensitivity of a key.
func (s *Schema) Classify(name string) (Sensitivity, error) {
	spec, ok := s.Lookup(name)
	if !ok {
		return "", NewSchemaError(s.name, "unknown key "+name)
	}
	return spec.Sensitivity, nil
}

// FilterByTarget returns the specs whose target set intersects the given targets.
func (s *Schema) FilterByTarget(targets ...Target) []KeySpec {
	var out []KeySpec
	for _, spec := range s.specs {
		for _, t := range targets {
			if spec.AllowsTarget(t) {
				out = append(out, spec)
				break
			}
		}
	}
	return out
}

// =============================================================================
// Built-in Schemas
// =============================================================================

// Well-known key names. Centralized so callers never hardcode raw strings.
const (
	KeyBasicAuthUser = "BASIC_AUTH_USER"
	KeyBasicAuthHash = "BASIC_AUTH_HASH"
	KeyAppSecret     = "APP_SECRET"

	KeyAzureClientID       = "AZURE_CLIENT_ID"
	KeyAzureTenantID       = "AZURE_TENANT_ID"
	KeyAzureSubscriptionID = "AZURE_SUBSCRIPTION_ID"
	KeyAzureResourceGroup  = "AZURE_RESOURCE_GROUP"
	KeyAzureLocation       = "AZURE_LOCATION"
	KeyAzureContainerName  = "AZURE_CONTAINER_NAME"
	KeyAzureDNSLabel       = "AZURE_DNS_LABEL"

	KeyPublicDomain = "PUBLIC_DOMAIN"
	KeyACMEEmail    = "ACME_EMAIL"

	KeyContainerImage = "CONTAINER_IMAGE"
	KeyGHCRPrivate    = "GHCR_PRIVATE"
	KeyGHCRUsername   = "GHCR_USERNAME"
	KeyGHCRToken      = "GHCR_TOKEN"

	KeyDefaultCPUCores = "DEFAULT_CPU_CORES"
	KeyDefaultMemoryGB = "DEFAULT_MEMORY_GB"

	KeyRuntimeEnvDotenv = "RUNTIME_ENV_DOTENV"

	KeyHooksModule   = "DEPLOY_HOOKS_MODULE"
	KeyHooksSoftFail = "DEPLOY_HOOKS_SOFT_FAIL"
)

var runtimeSchema = mustSchema("runtime", []KeySpec{
	{
		Name:        KeyBasicAuthUser,
		Sensitivity: SensitivityVar,
		Default:     "admin",
		HasDefault:  true,
		Targets:     []Target{TargetRuntimeFile, TargetCIVariable},
	},
	{
		Name:        KeyBasicAuthHash,
		Sensitivity: SensitivitySecret,
		Mandatory:   true,
		Targets:     []Target{TargetRuntimeFile, TargetCISecret},
	},
	{
		Name:        KeyAppSecret,
		Sensitivity: SensitivitySecret,
		Targets:     []Target{TargetRuntimeFile},
	},
})

var deploySchema = mustSchema("deploy", []KeySpec{
	{
		Name:        KeyAzureClientID,
		Sensitivity: SensitivityVar,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyAzureTenantID,
		Sensitivity: SensitivityVar,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyAzureSubscriptionID,
		Sensitivity: SensitivityVar,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyAzureResourceGroup,
		Sensitivity: SensitivityVar,
		Default:     "shipway-rg",
		HasDefault:  true,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyAzureLocation,
		Sensitivity: SensitivityVar,
		Default:     "westeurope",
		HasDefault:  true,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyAzureContainerName,
		Sensitivity: SensitivityVar,
		Default:     "shipway-app",
		HasDefault:  true,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyAzureDNSLabel,
		Sensitivity: SensitivityVar,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyPublicDomain,
		Sensitivity: SensitivityVar,
		Mandatory:   true,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyACMEEmail,
		Sensitivity: SensitivityVar,
		Mandatory:   true,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyContainerImage,
		Sensitivity: SensitivityVar,
		Mandatory:   true,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyGHCRPrivate,
		Sensitivity: SensitivityVar,
		Default:     "false",
		HasDefault:  true,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyGHCRUsername,
		Sensitivity: SensitivityVar,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyGHCRToken,
		Sensitivity: SensitivitySecret,
		Targets:     []Target{TargetDeployFile, TargetCISecret},
	},
	{
		Name:        KeyDefaultCPUCores,
		Sensitivity: SensitivityVar,
		Default:     "1.0",
		HasDefault:  true,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyDefaultMemoryGB,
		Sensitivity: SensitivityVar,
		Default:     "2.0",
		HasDefault:  true,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyHooksModule,
		Sensitivity: SensitivityVar,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	{
		Name:        KeyHooksSoftFail,
		Sensitivity: SensitivityVar,
		Targets:     []Target{TargetDeployFile, TargetCIVariable},
	},
	// CI wiring expects this secret to exist to materialize .env in CI.
	// It is never a container environment variable.
	{
		Name:        KeyRuntimeEnvDotenv,
		Sensitivity: SensitivitySecret,
		Mandatory:   true,
		Targets:     []Target{TargetCISecret},
	},
})

var combinedSchema = mustSchema("combined",
	append(runtimeSchema.Specs(), deploySchema.Specs()...))

// RuntimeSchema returns the schema for the runtime env file (.env).
func RuntimeSchema() *Schema { return runtimeSchema }

// DeploySchema returns the schema for deploy-time inputs (.env.deploy + process env).
func DeploySchema() *Schema { return deploySchema }

// CombinedSchema returns the union of the runtime and deploy schemas.
// A full deployment run resolves both at once, since the plan needs keys
// from each file. The two schemas declare disjoint key names, so the union
// always satisfies the structural invariants.
func CombinedSchema() *Schema { return combinedSchema }
