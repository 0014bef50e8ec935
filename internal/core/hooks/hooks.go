package hooks

import (
	"github.com/artpar/shipway/internal/core/deploy"
)

// =============================================================================
// Extension Points
// =============================================================================

// Wire names for the extension points, in lifecycle order. These are the
// names used in logs and error reports, and the names hook units are
// documented under.
const (
	PointPreValidateEnv  = "pre_validate_env"
	PointPostValidateEnv = "post_validate_env"
	PointBuildDeployPlan = "build_deploy_plan"
	PointPreRenderYAML   = "pre_render_yaml"
	PointPostRenderYAML  = "post_render_yaml"
	PointPreApply        = "pre_az_apply"
	PointPostDeploy      = "post_deploy"
	PointOnError         = "on_error"
)

// Points lists the extension points in lifecycle order.
func Points() []string {
	return []string{
		PointPreValidateEnv,
		PointPostValidateEnv,
		PointBuildDeployPlan,
		PointPreRenderYAML,
		PointPostRenderYAML,
		PointPreApply,
		PointPostDeploy,
		PointOnError,
	}
}

// =============================================================================
// Hook Set
// =============================================================================

// Hooks is one hook unit: a set of optional functions called at fixed points
// of a deployment run. Any nil slot is skipped. Hook functions receive the
// live context and plan and may mutate them; every later stage sees the
// mutations.
type Hooks struct {
	// PreValidateEnv runs after sources are merged, before schema
	// validation. The environment view is fully mutable here, so a hook can
	// inject or remove keys before validation judges them.
	PreValidateEnv func(ctx *deploy.Context) error

	// PostValidateEnv runs right after schema validation passes.
	PostValidateEnv func(ctx *deploy.Context) error

	// BuildDeployPlan runs once the plan is built, before it is finalized.
	// This is the place to patch sizing, ports, images, or extra env.
	BuildDeployPlan func(ctx *deploy.Context, plan *deploy.Plan) error

	// PreRenderYAML runs as the plan is finalized: the last chance to
	// mutate it before units are recomputed, limits are checked, and
	// artifacts render.
	PreRenderYAML func(ctx *deploy.Context, plan *deploy.Plan) error

	// PostRenderYAML rewrites one rendered artifact. It is called once per
	// deployment unit with the rendered text and returns the text to use.
	// An empty result keeps the input unchanged.
	PostRenderYAML func(ctx *deploy.Context, plan *deploy.Plan, unit, text string) (string, error)

	// PreApply runs before one artifact is applied, with the path the
	// artifact was written to.
	PreApply func(ctx *deploy.Context, plan *deploy.Plan, unit, path string) error

	// PostDeploy runs once after every unit applied successfully.
	PostDeploy func(ctx *deploy.Context, plan *deploy.Plan, results []deploy.ApplyResult) error

	// OnError observes a failing run. It has no error return and cannot
	// veto, retry, or replace the failure it is shown.
	OnError func(ctx *deploy.Context, stage string, err error)
}

// Empty reports whether no slot is filled.
func (h Hooks) Empty() bool {
	return h.PreValidateEnv == nil &&
		h.PostValidateEnv == nil &&
		h.BuildDeployPlan == nil &&
		h.PreRenderYAML == nil &&
		h.PostRenderYAML == nil &&
		h.PreApply == nil &&
		h.PostDeploy == nil &&
		h.OnError == nil
}

// =============================================================================
// Loader
// =============================================================================

// Loader resolves a hook unit reference into a hook set.
//
// An empty ref means "the conventional default": implementations return a
// zero Hooks with no error when nothing is installed there. A non-empty ref
// that cannot be resolved is always an error, whatever the soft-fail
// setting, because a unit the operator named must exist.
type Loader interface {
	Load(ref string) (Hooks, error)
}
