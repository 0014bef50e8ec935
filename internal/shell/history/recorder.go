package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/artpar/shipway/internal/core/crypto"
	"github.com/artpar/shipway/internal/core/deploy"
	"github.com/artpar/shipway/internal/engine"
)

// =============================================================================
// Run Recording
// =============================================================================

// RunMeta carries invocation facts the engine does not know.
type RunMeta struct {
	// Name labels the deployment; empty falls back to the plan's base name.
	Name string

	// Target names where the run applied, e.g. "aci:shipway-rg@westeurope".
	Target string

	// Revision is the VCS revision the run deployed.
	Revision string
}

// Recorder adapts a Store to the engine's run recording port.
//
// The stored plan always has its per-service environment stripped. When a
// snapshot key is set the resolved environment is encrypted into the record;
// without one it is not stored at all. Secrets never reach the database in
// the clear.
type Recorder struct {
	store *Store
	meta  RunMeta
	key   []byte
	log   *slog.Logger
}

// NewRecorder creates a Recorder. The key is optional; see Recorder.
func NewRecorder(store *Store, meta RunMeta, key []byte, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{store: store, meta: meta, key: key, log: log.With("component", "history")}
}

// Record persists one finished run under a fresh ID.
func (r *Recorder) Record(ctx context.Context, rec engine.RunRecord) error {
	run := &Run{
		ID:         uuid.New().String(),
		Name:       r.meta.Name,
		Mode:       rec.Mode,
		Target:     r.meta.Target,
		Revision:   r.meta.Revision,
		Stage:      string(rec.Stage),
		Err:        rec.Err,
		Results:    rec.Results,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}

	if rec.Plan != nil {
		if run.Name == "" {
			run.Name = rec.Plan.Naming.Base
		}
		cipher, err := encryptEnvSnapshot(rec.Plan, r.key)
		if err != nil {
			return err
		}
		run.EnvCipher = cipher
		run.Plan = stripEnv(rec.Plan)
	}

	for _, a := range rec.Artifacts {
		sum := sha256.Sum256([]byte(a.Content))
		run.Artifacts = append(run.Artifacts, ArtifactDigest{
			Unit:     a.Unit,
			DNSLabel: a.DNSLabel,
			Primary:  a.Primary,
			SHA256:   hex.EncodeToString(sum[:]),
			Bytes:    len(a.Content),
		})
	}

	if err := r.store.SaveRun(ctx, run); err != nil {
		return err
	}
	r.log.Debug("run recorded", "id", run.ID, "stage", run.Stage)
	return nil
}

// =============================================================================
// Environment Snapshots
// =============================================================================

// EnvSnapshot is the decrypted form of a run's environment: the values each
// service carried at render time.
type EnvSnapshot map[string]map[string]string

// DecryptEnv opens a run's environment snapshot. Runs recorded without a
// snapshot key have none.
func DecryptEnv(run *Run, key []byte) (EnvSnapshot, error) {
	if len(run.EnvCipher) == 0 {
		return nil, nil
	}
	if len(key) == 0 {
		return nil, ErrNoCipherKey
	}

	plain, err := crypto.Decrypt(run.EnvCipher, key)
	if err != nil {
		return nil, fmt.Errorf("decrypting env snapshot for run %s: %w", run.ID, err)
	}

	var snap EnvSnapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return nil, NewStoreError("DecryptEnv", "run", run.ID, "failed to parse env snapshot", ErrInvalidData)
	}
	return snap, nil
}

func encryptEnvSnapshot(plan *deploy.Plan, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, nil
	}

	snap := EnvSnapshot{}
	for _, svc := range plan.AllServices() {
		if len(svc.Env) > 0 {
			snap[svc.Service] = svc.Env
		}
	}
	if len(snap) == 0 {
		return nil, nil
	}

	plain, err := json.Marshal(snap)
	if err != nil {
		return nil, NewStoreError("Record", "run", "", "failed to serialize env snapshot", ErrInvalidData)
	}

	cipher, err := crypto.Encrypt(plain, key)
	if err != nil {
		return nil, fmt.Errorf("encrypting env snapshot: %w", err)
	}
	return cipher, nil
}

// stripEnv clones the plan without per-service environment values.
func stripEnv(plan *deploy.Plan) *deploy.Plan {
	out := plan.Clone()
	out.App.Env = nil
	if out.Sidecar != nil {
		out.Sidecar.Env = nil
	}
	for i := range out.Secondaries {
		out.Secondaries[i].Env = nil
	}
	return out
}
