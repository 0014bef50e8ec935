package engine

import "fmt"

// =============================================================================
// Lifecycle Stages
// =============================================================================

// Stage is one state of the deployment lifecycle.
type Stage string

const (
	StageStart            Stage = "start"
	StageEnvResolved      Stage = "env-resolved"
	StagePlanBuilt        Stage = "plan-built"
	StagePlanFinalized    Stage = "plan-finalized"
	StageArtifactRendered Stage = "artifact-rendered"
	StageApplied          Stage = "applied"
	StageDone             Stage = "done"
	StageFailed           Stage = "error"
)

// Stages lists the happy-path stages in order.
func Stages() []Stage {
	return []Stage{
		StageStart,
		StageEnvResolved,
		StagePlanBuilt,
		StagePlanFinalized,
		StageArtifactRendered,
		StageApplied,
		StageDone,
	}
}

// transitions defines the lifecycle state machine: from → []to. Every
// non-terminal stage advances to its successor or falls to error.
var transitions = map[Stage][]Stage{
	StageStart:            {StageEnvResolved, StageFailed},
	StageEnvResolved:      {StagePlanBuilt, StageFailed},
	StagePlanBuilt:        {StagePlanFinalized, StageFailed},
	StagePlanFinalized:    {StageArtifactRendered, StageFailed},
	StageArtifactRendered: {StageApplied, StageFailed},
	StageApplied:          {StageDone, StageFailed},
}

// CanAdvance checks if transitioning from → to is allowed.
func CanAdvance(from, to Stage) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a stage ends the run.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// advance moves to the next stage, panicking on an illegal jump: a bad
// transition is a bug in the engine, not a runtime condition.
func advance(from, to Stage) Stage {
	if !CanAdvance(from, to) {
		panic(fmt.Sprintf("illegal stage transition %s -> %s", from, to))
	}
	return to
}
