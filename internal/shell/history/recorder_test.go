package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/shipway/internal/core/crypto"
	"github.com/artpar/shipway/internal/core/deploy"
	"github.com/artpar/shipway/internal/core/render"
	"github.com/artpar/shipway/internal/engine"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recordedPlan() *deploy.Plan {
	return &deploy.Plan{
		Mode:          deploy.ModeAppSidecar,
		Naming:        deploy.Naming{Base: "shipway-app", DNSLabel: "acme-web"},
		Location:      "westeurope",
		ResourceGroup: "shipway-rg",
		App: deploy.ServicePlan{
			Service: "web",
			Image:   "ghcr.io/acme/web:1.2.3",
			Env:     map[string]string{"SERVICE_API_KEY": "hunter2"},
		},
		Sidecar: &deploy.ServicePlan{
			Service: "tls-proxy",
			Env:     map[string]string{"BASIC_AUTH_USER": "admin"},
		},
	}
}

func doneRecord() engine.RunRecord {
	return engine.RunRecord{
		Mode:  "app+sidecar",
		Stage: engine.StageDone,
		Plan:  recordedPlan(),
		Artifacts: []render.Artifact{
			{Unit: "shipway-app", DNSLabel: "acme-web", Primary: true, Content: "apiVersion: '2021-10-01'\n"},
		},
		Results: []deploy.ApplyResult{
			{Unit: "shipway-app", FQDN: "acme-web.westeurope.azurecontainer.io", State: "Succeeded"},
		},
		StartedAt:  time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 25, 10, 1, 30, 0, time.UTC),
	}
}

// =============================================================================
// Record Tests
// =============================================================================

func TestRecordPersistsRun(t *testing.T) {
	store := openStore(t)
	key := crypto.DeriveKey("history-passphrase")
	rec := NewRecorder(store, RunMeta{Target: "aci:shipway-rg@westeurope", Revision: "3f2a1bc"}, key, discardLogger())

	require.NoError(t, rec.Record(context.Background(), doneRecord()))

	runs, err := store.ListRuns(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "shipway-app", run.Name) // falls back to the plan's base name
	assert.Equal(t, "app+sidecar", run.Mode)
	assert.Equal(t, "aci:shipway-rg@westeurope", run.Target)
	assert.Equal(t, "3f2a1bc", run.Revision)
	assert.Equal(t, string(engine.StageDone), run.Stage)
	assert.False(t, run.Failed())

	sum := sha256.Sum256([]byte("apiVersion: '2021-10-01'\n"))
	require.Len(t, run.Artifacts, 1)
	assert.Equal(t, hex.EncodeToString(sum[:]), run.Artifacts[0].SHA256)
	assert.Equal(t, len("apiVersion: '2021-10-01'\n"), run.Artifacts[0].Bytes)

	require.Len(t, run.Results, 1)
	assert.Equal(t, "Succeeded", run.Results[0].State)
}

func TestRecordStripsEnvFromStoredPlan(t *testing.T) {
	store := openStore(t)
	key := crypto.DeriveKey("history-passphrase")
	rec := NewRecorder(store, RunMeta{}, key, discardLogger())

	require.NoError(t, rec.Record(context.Background(), doneRecord()))

	runs, err := store.ListRuns(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	require.NotNil(t, runs[0].Plan)
	assert.Empty(t, runs[0].Plan.App.Env)
	require.NotNil(t, runs[0].Plan.Sidecar)
	assert.Empty(t, runs[0].Plan.Sidecar.Env)
}

func TestRecordEnvSnapshotRoundtrip(t *testing.T) {
	store := openStore(t)
	key := crypto.DeriveKey("history-passphrase")
	rec := NewRecorder(store, RunMeta{}, key, discardLogger())

	require.NoError(t, rec.Record(context.Background(), doneRecord()))

	runs, err := store.ListRuns(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, runs[0].EnvCipher)

	snap, err := DecryptEnv(&runs[0], key)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", snap["web"]["SERVICE_API_KEY"])
	assert.Equal(t, "admin", snap["tls-proxy"]["BASIC_AUTH_USER"])
}

func TestRecordWithoutKeyStoresNoEnv(t *testing.T) {
	store := openStore(t)
	rec := NewRecorder(store, RunMeta{}, nil, discardLogger())

	require.NoError(t, rec.Record(context.Background(), doneRecord()))

	runs, err := store.ListRuns(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Empty(t, runs[0].EnvCipher)
	require.NotNil(t, runs[0].Plan)
	assert.Empty(t, runs[0].Plan.App.Env)

	snap, err := DecryptEnv(&runs[0], nil)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRecordFailedRunWithoutPlan(t *testing.T) {
	store := openStore(t)
	rec := NewRecorder(store, RunMeta{Name: "nightly", Target: "aci:shipway-rg@westeurope"}, nil, discardLogger())

	record := engine.RunRecord{
		Mode:       "app+sidecar",
		Stage:      engine.StageFailed,
		Err:        "resolving environment: missing mandatory keys",
		StartedAt:  time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 25, 10, 0, 1, 0, time.UTC),
	}
	require.NoError(t, rec.Record(context.Background(), record))

	runs, err := store.ListRuns(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Equal(t, "nightly", runs[0].Name)
	assert.True(t, runs[0].Failed())
	assert.Nil(t, runs[0].Plan)
	assert.Empty(t, runs[0].Artifacts)
}

func TestRecordMetaNameWinsOverPlanBase(t *testing.T) {
	store := openStore(t)
	rec := NewRecorder(store, RunMeta{Name: "release-42"}, nil, discardLogger())

	require.NoError(t, rec.Record(context.Background(), doneRecord()))

	runs, err := store.ListRuns(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "release-42", runs[0].Name)
}

// =============================================================================
// DecryptEnv Tests
// =============================================================================

func TestDecryptEnvWrongKey(t *testing.T) {
	store := openStore(t)
	rec := NewRecorder(store, RunMeta{}, crypto.DeriveKey("right"), discardLogger())
	require.NoError(t, rec.Record(context.Background(), doneRecord()))

	runs, err := store.ListRuns(context.Background(), ListOptions{})
	require.NoError(t, err)

	_, err = DecryptEnv(&runs[0], crypto.DeriveKey("wrong"))
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func TestDecryptEnvWithoutKey(t *testing.T) {
	run := &Run{ID: "run-1", EnvCipher: []byte{0x01}}
	_, err := DecryptEnv(run, nil)
	assert.ErrorIs(t, err, ErrNoCipherKey)
}
