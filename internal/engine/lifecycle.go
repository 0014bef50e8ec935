// Package engine drives a deployment run through its lifecycle: resolve the
// environment, interpret the manifest, build and finalize the plan, render
// artifacts, and apply them, dispatching hooks at every stage boundary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/shipway/internal/core/deploy"
	"github.com/artpar/shipway/internal/core/envschema"
	"github.com/artpar/shipway/internal/core/hooks"
	"github.com/artpar/shipway/internal/core/manifest"
	"github.com/artpar/shipway/internal/core/render"
)

// DefaultArtifactDir is where rendered artifacts land, relative to the repo
// root, when no explicit directory is configured.
const DefaultArtifactDir = ".shipway/artifacts"

// =============================================================================
// Collaborator Ports
// =============================================================================

// Preparer readies the target platform before artifacts render: anything a
// rendered descriptor references (identity, storage, vault) must exist, and
// its facts must be filled into plan.Infra.
type Preparer interface {
	Prepare(ctx context.Context, plan *deploy.Plan) error
}

// Applier applies one rendered artifact to the target platform. Retry and
// polling policy live inside implementations; the engine stops at the first
// failed unit.
type Applier interface {
	Apply(ctx context.Context, plan *deploy.Plan, artifact render.Artifact, path string) (deploy.ApplyResult, error)
}

// Recorder persists finished runs. Implementations must tolerate partial
// state: a run that failed at start has no plan and no artifacts.
type Recorder interface {
	Record(ctx context.Context, rec RunRecord) error
}

// =============================================================================
// Engine
// =============================================================================

// Config wires an Engine's collaborators.
type Config struct {
	Loader  hooks.Loader
	Applier Applier

	// Preparer is optional; when set, it runs once the plan is finalized,
	// before rendering. Render-only runs work without one because zero
	// Infra values render as omitted sections.
	Preparer Preparer

	// Recorder is optional; when set, every run is recorded and recording
	// failures are logged, never fatal.
	Recorder Recorder

	// ArtifactDir overrides where rendered artifacts are written.
	// Empty means DefaultArtifactDir under the run's repo root.
	ArtifactDir string

	Log *slog.Logger
}

// Engine executes deployment runs.
type Engine struct {
	loader      hooks.Loader
	applier     Applier
	preparer    Preparer
	recorder    Recorder
	artifactDir string
	log         *slog.Logger
}

// New creates an Engine from the given wiring.
func New(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		loader:      cfg.Loader,
		applier:     cfg.Applier,
		preparer:    cfg.Preparer,
		recorder:    cfg.Recorder,
		artifactDir: cfg.ArtifactDir,
		log:         log,
	}
}

// RunInput is everything one lifecycle run consumes.
type RunInput struct {
	// Ctx is the run's shared state. The engine populates Ctx.Env from the
	// merged sources; everything else arrives set by the caller.
	Ctx *deploy.Context

	// ManifestYAML is the raw deployment manifest text.
	ManifestYAML string

	// Sources is the layered environment, highest precedence first.
	Sources []envschema.Source

	// StopAfter ends the run once the given stage is reached, for
	// validate-only and render-only invocations. Zero value runs to done.
	StopAfter Stage
}

// RunResult is the state a run accumulated by the time it ended.
type RunResult struct {
	Stage     Stage
	Env       envschema.ResolvedEnv
	Plan      *deploy.Plan
	Artifacts []render.Artifact
	Paths     []string
	Results   []deploy.ApplyResult
}

// RunRecord is what the engine hands the history store after a run.
type RunRecord struct {
	Mode       string
	Stage      Stage
	Err        string
	Plan       *deploy.Plan
	Artifacts  []render.Artifact
	Results    []deploy.ApplyResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// =============================================================================
// Lifecycle
// =============================================================================

// Run executes one deployment run. The returned RunResult is never nil and
// reports the terminal stage alongside whatever state the run accumulated;
// on failure the error is a *StageError naming the stage the run was in.
func (e *Engine) Run(goCtx context.Context, in RunInput) (res *RunResult, err error) {
	ctx := in.Ctx
	log := ctx.Logger()
	started := time.Now()
	run := &RunResult{Stage: StageStart}

	defer func() {
		e.record(goCtx, ctx, run, err, started)
	}()

	var runner *hooks.Runner
	fail := func(cause error) (*RunResult, error) {
		stageErr := NewStageError(run.Stage, cause)
		if runner != nil {
			runner.OnError(ctx, string(run.Stage), cause)
		}
		run.Stage = advance(run.Stage, StageFailed)
		return run, stageErr
	}

	// ---- start -> env-resolved: merge, load hooks, validate ----

	schema := envschema.CombinedSchema()
	ctx.Env = deploy.NewEnvView(envschema.MergeSources(schema, in.Sources))

	loaded, err := e.loadHooks(ctx)
	if err != nil {
		return fail(err)
	}
	runner = hooks.NewRunner(loaded, log)
	if loaded.Empty() {
		log.Debug("no hooks loaded")
	} else {
		log.Info("hooks loaded", "ref", ctx.HooksModuleRef())
	}

	// The soft-fail switch is read once, before any hook can edit it.
	soft := ctx.SoftFail()

	if err := e.softHook(ctx, nil, soft, func() error { return runner.PreValidateEnv(ctx) }); err != nil {
		return fail(err)
	}

	resolved, err := envschema.Resolve(schema, []envschema.Source{{
		Provenance: envschema.ProvenanceMerged,
		Strict:     true,
		Values:     ctx.Env.Snapshot(),
	}})
	if err != nil {
		return fail(err)
	}
	if err := envschema.ValidateCrossFieldRules(resolved, schema.Name()); err != nil {
		return fail(err)
	}
	// Defaults materialize in the view; keys hooks wrote survived validation
	// and stay visible to every later stage.
	ctx.Env.Restore(resolved.Map())
	run.Env = resolved

	if err := e.softHook(ctx, nil, soft, func() error { return runner.PostValidateEnv(ctx) }); err != nil {
		return fail(err)
	}
	run.Stage = advance(run.Stage, StageEnvResolved)
	if run.Stage == in.StopAfter {
		return run, nil
	}

	// ---- env-resolved -> plan-built: interpret manifest, build plan ----

	m, err := manifest.Parse(in.ManifestYAML)
	if err != nil {
		return fail(err)
	}
	roles, err := m.Roles(manifest.RoleOverrides{
		App:     ctx.Invocation.AppService,
		Sidecar: ctx.Invocation.SidecarService,
	})
	if err != nil {
		return fail(err)
	}
	plan, err := deploy.Build(ctx, m, roles)
	if err != nil {
		return fail(err)
	}
	run.Plan = plan

	if err := e.softHook(ctx, plan, soft, func() error { return runner.BuildDeployPlan(ctx, plan) }); err != nil {
		return fail(err)
	}
	run.Stage = advance(run.Stage, StagePlanBuilt)
	if run.Stage == in.StopAfter {
		return run, nil
	}

	// ---- plan-built -> plan-finalized: last mutation chance, then lock ----

	if err := e.softHook(ctx, plan, soft, func() error { return runner.PreRenderYAML(ctx, plan) }); err != nil {
		return fail(err)
	}
	if err := deploy.AssignUnits(plan); err != nil {
		return fail(err)
	}
	if err := deploy.ValidatePlan(plan).Error(); err != nil {
		return fail(err)
	}
	run.Stage = advance(run.Stage, StagePlanFinalized)
	if run.Stage == in.StopAfter {
		return run, nil
	}

	// ---- plan-finalized -> artifact-rendered ----

	// Infrastructure facts must land in the plan before rendering reads them.
	if e.preparer != nil {
		if err := e.preparer.Prepare(goCtx, plan); err != nil {
			return fail(err)
		}
	}

	artifacts, err := render.Render(plan)
	if err != nil {
		return fail(err)
	}
	for i := range artifacts {
		a := &artifacts[i]
		if err := e.softHook(ctx, plan, soft, func() error {
			text, hookErr := runner.PostRenderYAML(ctx, plan, a.Unit, a.Content)
			if hookErr != nil {
				return hookErr
			}
			a.Content = text
			return nil
		}); err != nil {
			return fail(err)
		}
	}
	run.Artifacts = artifacts
	run.Stage = advance(run.Stage, StageArtifactRendered)

	// Artifacts always land on disk, so a run stopped here leaves something
	// to inspect and pre-apply hooks get a real path.
	paths, err := e.writeArtifacts(ctx, artifacts)
	if err != nil {
		return fail(err)
	}
	run.Paths = paths
	if run.Stage == in.StopAfter {
		return run, nil
	}

	// ---- artifact-rendered -> applied: first failure stops the rest ----

	if e.applier == nil {
		return fail(errors.New("no applier configured"))
	}
	for i := range artifacts {
		a := artifacts[i]
		path := paths[i]
		if err := e.softHook(ctx, plan, soft, func() error {
			return runner.PreApply(ctx, plan, a.Unit, path)
		}); err != nil {
			return fail(err)
		}
		result, applyErr := e.applier.Apply(goCtx, plan, a, path)
		if applyErr != nil {
			return fail(NewApplyError(a.Unit, applyErr))
		}
		log.Info("unit applied", "unit", a.Unit, "fqdn", result.FQDN, "state", result.State)
		run.Results = append(run.Results, result)
	}
	run.Stage = advance(run.Stage, StageApplied)

	// ---- applied -> done ----

	if err := e.softHook(ctx, plan, soft, func() error {
		return runner.PostDeploy(ctx, plan, run.Results)
	}); err != nil {
		return fail(err)
	}
	run.Stage = advance(run.Stage, StageDone)
	log.Info("deployment complete", "units", len(run.Results))
	return run, nil
}

// loadHooks resolves the run's hook unit. A nil loader disables hooks, but
// refuses a configured ref rather than silently ignoring it.
func (e *Engine) loadHooks(ctx *deploy.Context) (hooks.Hooks, error) {
	ref := ctx.HooksModuleRef()
	if e.loader == nil {
		if ref != "" {
			return hooks.Hooks{}, hooks.NewLoadError(ref, errors.New("no hook loader configured"))
		}
		return hooks.Hooks{}, nil
	}
	return e.loader.Load(ref)
}

// softHook runs one hook dispatch under the soft-fail contract: when soft is
// set and the failure is a hook execution failure, the env view and plan are
// restored to their state from immediately before the call and the run
// continues. Load failures and engine errors are never softened.
func (e *Engine) softHook(ctx *deploy.Context, plan *deploy.Plan, soft bool, dispatch func() error) error {
	envBefore := ctx.Env.Snapshot()
	var planBefore *deploy.Plan
	if plan != nil {
		planBefore = plan.Clone()
	}
	err := dispatch()
	if err == nil {
		return nil
	}
	if soft && errors.Is(err, hooks.ErrHookExec) {
		ctx.Env.Restore(envBefore)
		if plan != nil {
			*plan = *planBefore
		}
		ctx.Logger().Warn("hook failed, continuing under soft-fail", "error", err)
		return nil
	}
	return err
}

// writeArtifacts persists rendered descriptors for hooks and operators.
func (e *Engine) writeArtifacts(ctx *deploy.Context, artifacts []render.Artifact) ([]string, error) {
	dir := e.artifactDir
	if dir == "" {
		dir = filepath.Join(ctx.RepoRoot, DefaultArtifactDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		path := filepath.Join(dir, a.Unit+".yaml")
		// Descriptors carry secret values; keep them owner-only.
		if err := os.WriteFile(path, []byte(a.Content), 0o600); err != nil {
			return nil, fmt.Errorf("writing artifact %s: %w", a.Unit, err)
		}
		ctx.Logger().Debug("artifact written", "unit", a.Unit, "path", path)
		paths = append(paths, path)
	}
	return paths, nil
}

// record hands the finished run to the history store, if one is wired.
func (e *Engine) record(goCtx context.Context, ctx *deploy.Context, run *RunResult, runErr error, started time.Time) {
	if e.recorder == nil {
		return
	}
	rec := RunRecord{
		Mode:       string(ctx.Invocation.Mode),
		Stage:      run.Stage,
		Plan:       run.Plan,
		Artifacts:  run.Artifacts,
		Results:    run.Results,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if runErr != nil {
		rec.Err = runErr.Error()
	}
	if err := e.recorder.Record(goCtx, rec); err != nil {
		ctx.Logger().Warn("recording run failed", "error", err)
	}
}
