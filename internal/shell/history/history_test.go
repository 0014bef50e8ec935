package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/shipway/internal/core/deploy"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id string, started time.Time) *Run {
	return &Run{
		ID:       id,
		Name:     "shipway-app",
		Mode:     "app+sidecar",
		Target:   "aci:shipway-rg@westeurope",
		Revision: "3f2a1bc",
		Stage:    "done",
		Plan: &deploy.Plan{
			Mode:          deploy.ModeAppSidecar,
			Naming:        deploy.Naming{Base: "shipway-app", DNSLabel: "acme-web"},
			Location:      "westeurope",
			ResourceGroup: "shipway-rg",
			App:           deploy.ServicePlan{Service: "web", Image: "ghcr.io/acme/web:1.2.3"},
		},
		Artifacts: []ArtifactDigest{
			{Unit: "shipway-app", DNSLabel: "acme-web", Primary: true, SHA256: "ab12", Bytes: 512},
		},
		Results: []deploy.ApplyResult{
			{Unit: "shipway-app", FQDN: "acme-web.westeurope.azurecontainer.io", State: "Succeeded"},
		},
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestSaveRunAndGetRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", started)))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "shipway-app", got.Name)
	assert.Equal(t, "app+sidecar", got.Mode)
	assert.Equal(t, "aci:shipway-rg@westeurope", got.Target)
	assert.Equal(t, "3f2a1bc", got.Revision)
	assert.Equal(t, "done", got.Stage)
	assert.Empty(t, got.Err)
	assert.False(t, got.Failed())

	require.NotNil(t, got.Plan)
	assert.Equal(t, deploy.ModeAppSidecar, got.Plan.Mode)
	assert.Equal(t, "ghcr.io/acme/web:1.2.3", got.Plan.App.Image)

	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "shipway-app", got.Artifacts[0].Unit)
	assert.True(t, got.Artifacts[0].Primary)
	assert.Equal(t, 512, got.Artifacts[0].Bytes)

	require.Len(t, got.Results, 1)
	assert.Equal(t, "acme-web.westeurope.azurecontainer.io", got.Results[0].FQDN)

	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.FinishedAt.Equal(started.Add(90*time.Second)))
}

func TestSaveRunWithoutPlan(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := &Run{
		ID:         "run-failed",
		Mode:       "app+sidecar",
		Stage:      "error",
		Err:        "missing mandatory keys: CONTAINER_IMAGE",
		StartedAt:  time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 25, 10, 0, 1, 0, time.UTC),
	}
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-failed")
	require.NoError(t, err)
	assert.Nil(t, got.Plan)
	assert.Empty(t, got.Artifacts)
	assert.Empty(t, got.Results)
	assert.True(t, got.Failed())
	assert.Contains(t, got.Err, "CONTAINER_IMAGE")
}

func TestSaveRunDuplicateID(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", started)))
	err := store.SaveRun(ctx, sampleRun("run-1", started))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestGetRunMissing(t *testing.T) {
	store := openStore(t)
	_, err := store.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", base)))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-2", base.Add(time.Minute))))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-3", base.Add(2*time.Minute))))

	runs, err := store.ListRuns(ctx, ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)

	rest, err := store.ListRuns(ctx, ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "run-1", rest[0].ID)
}

// =============================================================================
// Target Tests
// =============================================================================

func sampleTarget(id, name string) *Target {
	return &Target{
		ID:           id,
		Name:         name,
		Provider:     "hetzner",
		Region:       "fsn1",
		Size:         "cx22",
		InstanceID:   "10042",
		PublicIP:     "116.203.0.12",
		SSHUser:      "root",
		SSHKeyCipher: []byte{0x01, 0x02, 0x03},
		CreatedAt:    time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
}

func TestSaveTargetAndActiveTarget(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTarget(ctx, sampleTarget("tgt-1", "staging")))

	got, err := store.ActiveTarget(ctx, "staging")
	require.NoError(t, err)
	assert.Equal(t, "tgt-1", got.ID)
	assert.Equal(t, "hetzner", got.Provider)
	assert.Equal(t, "fsn1", got.Region)
	assert.Equal(t, "cx22", got.Size)
	assert.Equal(t, "10042", got.InstanceID)
	assert.Equal(t, "116.203.0.12", got.PublicIP)
	assert.Equal(t, "root", got.SSHUser)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, got.SSHKeyCipher)
	assert.Nil(t, got.DestroyedAt)
}

func TestSaveTargetDuplicateActiveName(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTarget(ctx, sampleTarget("tgt-1", "staging")))
	err := store.SaveTarget(ctx, sampleTarget("tgt-2", "staging"))
	assert.ErrorIs(t, err, ErrDuplicateTarget)
}

func TestDestroyedTargetFreesItsName(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTarget(ctx, sampleTarget("tgt-1", "staging")))
	require.NoError(t, store.MarkTargetDestroyed(ctx, "tgt-1", time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC)))

	_, err := store.ActiveTarget(ctx, "staging")
	assert.ErrorIs(t, err, ErrNotFound)

	// The name is reusable once the previous holder is gone.
	require.NoError(t, store.SaveTarget(ctx, sampleTarget("tgt-2", "staging")))

	got, err := store.ActiveTarget(ctx, "staging")
	require.NoError(t, err)
	assert.Equal(t, "tgt-2", got.ID)
}

func TestMarkTargetDestroyedMissing(t *testing.T) {
	store := openStore(t)
	err := store.MarkTargetDestroyed(context.Background(), "nope", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTargetsIncludesDestroyed(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first := sampleTarget("tgt-1", "staging")
	require.NoError(t, store.SaveTarget(ctx, first))
	require.NoError(t, store.MarkTargetDestroyed(ctx, "tgt-1", time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC)))

	second := sampleTarget("tgt-2", "prod")
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	require.NoError(t, store.SaveTarget(ctx, second))

	targets, err := store.ListTargets(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "tgt-2", targets[0].ID)
	assert.Equal(t, "tgt-1", targets[1].ID)
	require.NotNil(t, targets[1].DestroyedAt)
	assert.Equal(t, 11, targets[1].DestroyedAt.Hour())
}
