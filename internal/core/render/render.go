package render

import (
	"github.com/artpar/shipway/internal/core/deploy"
)

// =============================================================================
// Artifacts
// =============================================================================

// Artifact is one rendered deployment descriptor, ready to apply.
type Artifact struct {
	// Unit is the deployment unit name the descriptor deploys as.
	Unit string

	// DNSLabel is the unit's network-addressable label.
	DNSLabel string

	// Primary marks the app-carrying unit. Exactly one artifact per plan
	// is primary, and it is always first.
	Primary bool

	// Content is the descriptor text.
	Content string
}

// Render turns a finalized plan into one artifact per deployment unit.
//
// Artifacts come back in unit order - the app-and-sidecar unit first, split
// off secondary units after - and that order is the apply order. Rendering
// is deterministic: the same plan always produces byte-identical artifacts.
func Render(plan *deploy.Plan) ([]Artifact, error) {
	if plan == nil {
		return nil, NewRenderError("", "plan is nil")
	}
	if len(plan.Units) == 0 {
		return nil, NewRenderError("", "plan has no deployment units")
	}

	artifacts := make([]Artifact, 0, len(plan.Units))
	for _, unit := range plan.Units {
		content, err := renderGroup(plan, unit)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{
			Unit:     unit.Name,
			DNSLabel: unit.DNSLabel,
			Primary:  unit.Primary(plan),
			Content:  content,
		})
	}
	return artifacts, nil
}
