package hooks

import (
	"fmt"
	"log/slog"

	"github.com/artpar/shipway/internal/core/deploy"
)

// =============================================================================
// Runner
// =============================================================================

// Runner dispatches a hook set. Nil slots are no-ops, panics become
// ExecErrors, and returned errors are wrapped so callers can match
// ErrHookExec without caring which point fired.
type Runner struct {
	hooks Hooks
	log   *slog.Logger
}

// NewRunner wraps a hook set for dispatch.
func NewRunner(h Hooks, log *slog.Logger) *Runner {
	return &Runner{hooks: h, log: log}
}

// Hooks returns the wrapped hook set.
func (r *Runner) Hooks() Hooks { return r.hooks }

func (r *Runner) logger() *slog.Logger {
	if r.log != nil {
		return r.log
	}
	return slog.Default()
}

// run executes one hook body with panic containment.
func (r *Runner) run(point string, invoke func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = NewExecError(point, fmt.Errorf("panic: %v", rec))
		}
	}()
	r.logger().Debug("running hook", "point", point)
	if hookErr := invoke(); hookErr != nil {
		return NewExecError(point, hookErr)
	}
	return nil
}

// PreValidateEnv dispatches the pre_validate_env point.
func (r *Runner) PreValidateEnv(ctx *deploy.Context) error {
	if r.hooks.PreValidateEnv == nil {
		return nil
	}
	return r.run(PointPreValidateEnv, func() error { return r.hooks.PreValidateEnv(ctx) })
}

// PostValidateEnv dispatches the post_validate_env point.
func (r *Runner) PostValidateEnv(ctx *deploy.Context) error {
	if r.hooks.PostValidateEnv == nil {
		return nil
	}
	return r.run(PointPostValidateEnv, func() error { return r.hooks.PostValidateEnv(ctx) })
}

// BuildDeployPlan dispatches the build_deploy_plan point.
func (r *Runner) BuildDeployPlan(ctx *deploy.Context, plan *deploy.Plan) error {
	if r.hooks.BuildDeployPlan == nil {
		return nil
	}
	return r.run(PointBuildDeployPlan, func() error { return r.hooks.BuildDeployPlan(ctx, plan) })
}

// PreRenderYAML dispatches the pre_render_yaml point.
func (r *Runner) PreRenderYAML(ctx *deploy.Context, plan *deploy.Plan) error {
	if r.hooks.PreRenderYAML == nil {
		return nil
	}
	return r.run(PointPreRenderYAML, func() error { return r.hooks.PreRenderYAML(ctx, plan) })
}

// PostRenderYAML dispatches the post_render_yaml point for one artifact and
// returns the text later stages should use. On any failure the input text
// comes back untouched alongside the error.
func (r *Runner) PostRenderYAML(ctx *deploy.Context, plan *deploy.Plan, unit, text string) (string, error) {
	if r.hooks.PostRenderYAML == nil {
		return text, nil
	}
	out := text
	err := r.run(PointPostRenderYAML, func() error {
		rewritten, hookErr := r.hooks.PostRenderYAML(ctx, plan, unit, text)
		if hookErr != nil {
			return hookErr
		}
		// An empty result means the hook declined to rewrite.
		if rewritten != "" {
			out = rewritten
		}
		return nil
	})
	if err != nil {
		return text, err
	}
	return out, nil
}

// PreApply dispatches the pre_az_apply point for one artifact.
func (r *Runner) PreApply(ctx *deploy.Context, plan *deploy.Plan, unit, path string) error {
	if r.hooks.PreApply == nil {
		return nil
	}
	return r.run(PointPreApply, func() error { return r.hooks.PreApply(ctx, plan, unit, path) })
}

// PostDeploy dispatches the post_deploy point.
func (r *Runner) PostDeploy(ctx *deploy.Context, plan *deploy.Plan, results []deploy.ApplyResult) error {
	if r.hooks.PostDeploy == nil {
		return nil
	}
	return r.run(PointPostDeploy, func() error { return r.hooks.PostDeploy(ctx, plan, results) })
}

// OnError dispatches the on_error point. The observer cannot fail the run:
// its own panic is logged and dropped so the original error always survives.
func (r *Runner) OnError(ctx *deploy.Context, stage string, cause error) {
	if r.hooks.OnError == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger().Error("on_error hook panicked", "stage", stage, "panic", rec)
		}
	}()
	r.hooks.OnError(ctx, stage, cause)
}
