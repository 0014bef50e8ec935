package deploy

import (
	"log/slog"

	"github.com/artpar/shipway/internal/core/envschema"
)

// =============================================================================
// Deploy Context
// =============================================================================

// Invocation carries the caller's already-parsed inputs. The CLI layer owns
// flag parsing; by the time values arrive here they are plain data.
type Invocation struct {
	Mode Mode

	// Role overrides: name a manifest service explicitly instead of relying
	// on its role tag.
	AppService     string
	SidecarService string

	// OmitSidecar marks the sidecar as intentionally absent, letting
	// sidecar-requiring modes proceed without one.
	OmitSidecar bool

	// Per-field plan overrides, highest precedence tier.
	Image        string
	SidecarImage string
	CPUCores     float64 // 0 = not set
	MemoryGB     float64 // 0 = not set
	Port         int     // 0 = not set

	// PortBudget overrides the platform's public ports per unit. 0 = default.
	PortBudget int

	// HooksModule is the explicit hook unit reference, if any.
	HooksModule string

	// SoftFailHooks downgrades hook execution failures to warnings.
	// Nil means "resolve from the environment".
	SoftFailHooks *bool

	// Args are the remaining invocation arguments, passed through to hooks.
	Args []string
}

// Context is the read-mostly state shared by reference across one lifecycle
// run. Env is the single mutable piece; hooks write to it and later stages
// see the writes.
type Context struct {
	RepoRoot   string
	Env        *EnvView
	Invocation Invocation
	Log        *slog.Logger
}

// Logger returns the context logger, falling back to the default so callers
// and hooks never need a nil check.
func (c *Context) Logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

// SoftFail resolves the hook soft-fail toggle: explicit invocation value
// first, then the environment flag.
func (c *Context) SoftFail() bool {
	if c.Invocation.SoftFailHooks != nil {
		return *c.Invocation.SoftFailHooks
	}
	if c.Env == nil {
		return false
	}
	return c.Env.Truthy(envschema.KeyHooksSoftFail)
}

// HooksModuleRef resolves the hook unit reference: explicit invocation value
// first, then the environment, otherwise empty (conventional default path).
func (c *Context) HooksModuleRef() string {
	if c.Invocation.HooksModule != "" {
		return c.Invocation.HooksModule
	}
	if c.Env == nil {
		return ""
	}
	return c.Env.Get(envschema.KeyHooksModule)
}
