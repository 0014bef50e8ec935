// Package hooks defines the customization points a deployment run exposes
// and the machinery that dispatches them.
//
// A hook unit fills any subset of the slots on [Hooks]; every slot left nil
// is skipped. The [Runner] owns dispatch: it recovers panics, wraps failures
// as [ExecError] so callers can match [ErrHookExec] without knowing which
// point fired, and guarantees the on-error observer can never replace the
// error it is shown.
//
// # Functions
//
//   - NewRunner: wrap a hook set for dispatch
//   - NewRegistry: compiled-in hook sets addressable by name
//
// # Usage
//
//	h := hooks.Hooks{
//		BuildDeployPlan: func(ctx *deploy.Context, plan *deploy.Plan) error {
//			plan.App.CPUCores = 2.0
//			return nil
//		},
//	}
//	r := hooks.NewRunner(h, logger)
//	if err := r.BuildDeployPlan(ctx, plan); err != nil {
//		// handle per the soft-fail policy
//	}
//
// Hook functions receive live references and mutate them in place. The
// values-as-boundaries rule (ADR-002) stops at this seam on purpose:
// in-place customization is what a hook is for.
package hooks
