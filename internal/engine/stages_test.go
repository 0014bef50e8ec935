package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageTransitionTable(t *testing.T) {
	order := Stages()
	for i := 0; i < len(order)-1; i++ {
		assert.True(t, CanAdvance(order[i], order[i+1]), "%s -> %s", order[i], order[i+1])
	}

	// Error is reachable from every non-terminal stage.
	for _, s := range order[:len(order)-1] {
		assert.True(t, CanAdvance(s, StageFailed), s)
	}

	// No skipping, no going back, terminals stay terminal.
	assert.False(t, CanAdvance(StageStart, StagePlanBuilt))
	assert.False(t, CanAdvance(StagePlanBuilt, StageStart))
	assert.False(t, CanAdvance(StageDone, StageFailed))
	assert.False(t, CanAdvance(StageFailed, StageDone))

	assert.True(t, StageDone.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StagePlanBuilt.Terminal())
}

func TestAdvancePanicsOnIllegalJump(t *testing.T) {
	assert.Panics(t, func() { advance(StageStart, StageApplied) })
	assert.Panics(t, func() { advance(StageDone, StageFailed) })
	assert.NotPanics(t, func() { advance(StageStart, StageEnvResolved) })
}
