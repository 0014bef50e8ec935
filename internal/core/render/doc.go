// Package render turns finalized deployment plans into Azure Container
// Instances container-group descriptors.
//
// This package contains the functional core logic for artifact generation.
// All functions are pure (no I/O, no side effects) and comply with ADR-002
// "Values as Boundaries". Rendering is deterministic: the same plan always
// produces byte-identical artifacts, which is what makes the applied state
// auditable and the hook contract testable.
//
// # Functions
//
//   - Render: produce one Artifact per deployment unit, primary unit first
//   - CaddyBootstrap: generate the TLS proxy's startup script
//   - NormalizeMemoryGB: round memory requests up to platform granularity
//
// # Usage
//
// The lifecycle engine renders after the last plan-mutating hook has run:
//
//	artifacts, err := render.Render(plan)
//	for _, artifact := range artifacts {
//	    if err := applier.Apply(ctx, artifact); err != nil {
//	        return err
//	    }
//	}
package render
