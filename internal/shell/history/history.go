package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/shipway/internal/core/deploy"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Records
// =============================================================================

// Run is one recorded deployment run. The stored plan has its per-service
// environment stripped; the resolved environment lives in EnvCipher when a
// snapshot key was configured, and nowhere otherwise.
type Run struct {
	ID         string
	Name       string
	Mode       string
	Target     string
	Revision   string
	Stage      string
	Err        string
	Plan       *deploy.Plan
	Artifacts  []ArtifactDigest
	Results    []deploy.ApplyResult
	EnvCipher  []byte
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether the run ended in the error stage.
func (r *Run) Failed() bool {
	return r.Err != "" || r.Stage == "error"
}

// ArtifactDigest identifies a rendered artifact without storing its
// descriptor text, which carries secrets.
type ArtifactDigest struct {
	Unit     string `json:"unit"`
	DNSLabel string `json:"dns_label"`
	Primary  bool   `json:"primary,omitempty"`
	SHA256   string `json:"sha256"`
	Bytes    int    `json:"bytes"`
}

// Target is one provisioned deployment host. The SSH private key is stored
// encrypted; destroyed targets keep their rows with DestroyedAt set.
type Target struct {
	ID           string
	Name         string
	Provider     string
	Region       string
	Size         string
	InstanceID   string
	PublicIP     string
	SSHUser      string
	SSHKeyCipher []byte
	CreatedAt    time.Time
	DestroyedAt  *time.Time
}

// ListOptions control list pagination.
type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// =============================================================================
// Store
// =============================================================================

// Store persists runs and targets in SQLite.
type Store struct {
	db *sqlx.DB
}

// Open opens the database at dsn and runs migrations.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("Open", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", "", err.Error(), ErrMigrationFailed)
	}

	return &Store{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID         string  `db:"id"`
	Name       string  `db:"name"`
	Mode       string  `db:"mode"`
	Target     string  `db:"target"`
	Revision   string  `db:"revision"`
	Stage      string  `db:"stage"`
	Error      string  `db:"error_message"`
	Plan       *string `db:"plan"`
	Artifacts  *string `db:"artifacts"`
	Results    *string `db:"results"`
	EnvCipher  []byte  `db:"env_cipher"`
	StartedAt  string  `db:"started_at"`
	FinishedAt string  `db:"finished_at"`
}

// SaveRun inserts one finished run.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	var planJSON *string
	if run.Plan != nil {
		b, err := json.Marshal(run.Plan)
		if err != nil {
			return NewStoreError("SaveRun", "run", run.ID, "failed to serialize plan", ErrInvalidData)
		}
		j := string(b)
		planJSON = &j
	}

	var artifactsJSON *string
	if len(run.Artifacts) > 0 {
		b, err := json.Marshal(run.Artifacts)
		if err != nil {
			return NewStoreError("SaveRun", "run", run.ID, "failed to serialize artifacts", ErrInvalidData)
		}
		j := string(b)
		artifactsJSON = &j
	}

	var resultsJSON *string
	if len(run.Results) > 0 {
		b, err := json.Marshal(run.Results)
		if err != nil {
			return NewStoreError("SaveRun", "run", run.ID, "failed to serialize results", ErrInvalidData)
		}
		j := string(b)
		resultsJSON = &j
	}

	query := `
		INSERT INTO runs (
			id, name, mode, target, revision, stage, error_message,
			plan, artifacts, results, env_cipher, started_at, finished_at
		) VALUES (
			:id, :name, :mode, :target, :revision, :stage, :error_message,
			:plan, :artifacts, :results, :env_cipher, :started_at, :finished_at
		)`

	row := map[string]any{
		"id":            run.ID,
		"name":          run.Name,
		"mode":          run.Mode,
		"target":        run.Target,
		"revision":      run.Revision,
		"stage":         run.Stage,
		"error_message": run.Err,
		"plan":          planJSON,
		"artifacts":     artifactsJSON,
		"results":       resultsJSON,
		"env_cipher":    run.EnvCipher,
		"started_at":    run.StartedAt.UTC().Format(time.RFC3339),
		"finished_at":   run.FinishedAt.UTC().Format(time.RFC3339),
	}

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewStoreError("SaveRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("SaveRun", "run", run.ID, err.Error(), err)
	}
	return nil
}

// GetRun loads one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}
	return rowToRun(&row)
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	opts = opts.Normalize()

	var rows []runRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	runs := make([]Run, 0, len(rows))
	for i := range rows {
		run, err := rowToRun(&rows[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func rowToRun(row *runRow) (*Run, error) {
	startedAt, _ := time.Parse(time.RFC3339, row.StartedAt)
	finishedAt, _ := time.Parse(time.RFC3339, row.FinishedAt)

	run := &Run{
		ID:         row.ID,
		Name:       row.Name,
		Mode:       row.Mode,
		Target:     row.Target,
		Revision:   row.Revision,
		Stage:      row.Stage,
		Err:        row.Error,
		EnvCipher:  row.EnvCipher,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}

	if row.Plan != nil && *row.Plan != "" && *row.Plan != "null" {
		if err := json.Unmarshal([]byte(*row.Plan), &run.Plan); err != nil {
			return nil, NewStoreError("rowToRun", "run", row.ID, "failed to parse plan", ErrInvalidData)
		}
	}
	if row.Artifacts != nil && *row.Artifacts != "" && *row.Artifacts != "null" {
		if err := json.Unmarshal([]byte(*row.Artifacts), &run.Artifacts); err != nil {
			return nil, NewStoreError("rowToRun", "run", row.ID, "failed to parse artifacts", ErrInvalidData)
		}
	}
	if row.Results != nil && *row.Results != "" && *row.Results != "null" {
		if err := json.Unmarshal([]byte(*row.Results), &run.Results); err != nil {
			return nil, NewStoreError("rowToRun", "run", row.ID, "failed to parse results", ErrInvalidData)
		}
	}
	return run, nil
}

// =============================================================================
// Target Operations
// =============================================================================

// targetRow represents a target row in the database.
type targetRow struct {
	ID           string  `db:"id"`
	Name         string  `db:"name"`
	Provider     string  `db:"provider"`
	Region       string  `db:"region"`
	Size         string  `db:"size"`
	InstanceID   string  `db:"instance_id"`
	PublicIP     string  `db:"public_ip"`
	SSHUser      string  `db:"ssh_user"`
	SSHKeyCipher []byte  `db:"ssh_key_cipher"`
	CreatedAt    string  `db:"created_at"`
	DestroyedAt  *string `db:"destroyed_at"`
}

// SaveTarget inserts one provisioned target.
func (s *Store) SaveTarget(ctx context.Context, target *Target) error {
	sshUser := target.SSHUser
	if sshUser == "" {
		sshUser = "root"
	}

	query := `
		INSERT INTO targets (
			id, name, provider, region, size, instance_id,
			public_ip, ssh_user, ssh_key_cipher, created_at, destroyed_at
		) VALUES (
			:id, :name, :provider, :region, :size, :instance_id,
			:public_ip, :ssh_user, :ssh_key_cipher, :created_at, :destroyed_at
		)`

	var destroyedAt *string
	if target.DestroyedAt != nil {
		d := target.DestroyedAt.UTC().Format(time.RFC3339)
		destroyedAt = &d
	}

	row := map[string]any{
		"id":             target.ID,
		"name":           target.Name,
		"provider":       target.Provider,
		"region":         target.Region,
		"size":           target.Size,
		"instance_id":    target.InstanceID,
		"public_ip":      target.PublicIP,
		"ssh_user":       sshUser,
		"ssh_key_cipher": target.SSHKeyCipher,
		"created_at":     target.CreatedAt.UTC().Format(time.RFC3339),
		"destroyed_at":   destroyedAt,
	}

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: targets.name") {
			return NewStoreError("SaveTarget", "target", target.Name, "active target with this name already exists", ErrDuplicateTarget)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed: targets.id") {
			return NewStoreError("SaveTarget", "target", target.ID, "target with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("SaveTarget", "target", target.ID, err.Error(), err)
	}
	return nil
}

// ActiveTarget loads the live target with the given name.
func (s *Store) ActiveTarget(ctx context.Context, name string) (*Target, error) {
	var row targetRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM targets WHERE name = ? AND destroyed_at IS NULL`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("ActiveTarget", "target", name, "no active target with this name", ErrNotFound)
		}
		return nil, NewStoreError("ActiveTarget", "target", name, err.Error(), err)
	}
	return rowToTarget(&row), nil
}

// MarkTargetDestroyed stamps the target's teardown time.
func (s *Store) MarkTargetDestroyed(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE targets SET destroyed_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return NewStoreError("MarkTargetDestroyed", "target", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("MarkTargetDestroyed", "target", id, "target not found", ErrNotFound)
	}
	return nil
}

// ListTargets returns targets newest first, destroyed ones included.
func (s *Store) ListTargets(ctx context.Context, opts ListOptions) ([]Target, error) {
	opts = opts.Normalize()

	var rows []targetRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM targets ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListTargets", "target", "", err.Error(), err)
	}

	targets := make([]Target, 0, len(rows))
	for i := range rows {
		targets = append(targets, *rowToTarget(&rows[i]))
	}
	return targets, nil
}

func rowToTarget(row *targetRow) *Target {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)

	var destroyedAt *time.Time
	if row.DestroyedAt != nil && *row.DestroyedAt != "" {
		t, _ := time.Parse(time.RFC3339, *row.DestroyedAt)
		destroyedAt = &t
	}

	return &Target{
		ID:           row.ID,
		Name:         row.Name,
		Provider:     row.Provider,
		Region:       row.Region,
		Size:         row.Size,
		InstanceID:   row.InstanceID,
		PublicIP:     row.PublicIP,
		SSHUser:      row.SSHUser,
		SSHKeyCipher: row.SSHKeyCipher,
		CreatedAt:    createdAt,
		DestroyedAt:  destroyedAt,
	}
}
