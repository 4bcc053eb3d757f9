// Package store persists run results to PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/scenario"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id uuid PRIMARY KEY,
    started_at timestamptz NOT NULL,
    duration_ms bigint NOT NULL,
    total integer NOT NULL,
    failed integer NOT NULL,
    tool_version text NOT NULL
);
CREATE TABLE IF NOT EXISTS scenario_results (
    run_id uuid NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
    scenario_id text NOT NULL,
    title text NOT NULL,
    suite text NOT NULL,
    passed boolean NOT NULL,
    started_at timestamptz NOT NULL,
    duration_ms bigint NOT NULL,
    failed_step text NOT NULL,
    kind text NOT NULL,
    error text NOT NULL,
    last_url text NOT NULL,
    steps jsonb NOT NULL,
    PRIMARY KEY (run_id, scenario_id)
);`

const sqlInsertRun = `
        INSERT INTO runs (id, started_at, duration_ms, total, failed, tool_version)
        VALUES ($1, $2, $3, $4, $5, $6);
    `

var resultColumns = []string{
	"run_id", "scenario_id", "title", "suite", "passed", "started_at", "duration_ms",
	"failed_step", "kind", "error", "last_url", "steps",
}

// Store writes and reads runs.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

type storedStep struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// PersistRun inserts the run and every scenario result in one transaction.
func (s *Store) PersistRun(ctx context.Context, run *scenario.RunResult, toolVersion string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after Commit reports ErrTxClosed.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlInsertRun,
		run.ID, run.Started.UTC(), run.Duration.Milliseconds(),
		len(run.Results), run.Failed(), toolVersion,
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	if len(run.Results) > 0 {
		if err := s.persistResults(ctx, tx, run.ID, run.Results); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Run persisted", zap.String("run_id", run.ID.String()), zap.Int("results", len(run.Results)))
	return nil
}

func (s *Store) persistResults(ctx context.Context, tx pgx.Tx, runID uuid.UUID, results []scenario.Result) error {
	rows := make([][]any, len(results))
	for i, r := range results {
		steps := make([]storedStep, len(r.Steps))
		for j, st := range r.Steps {
			steps[j] = storedStep{Name: st.Name, DurationMS: st.Duration.Milliseconds()}
			if st.Err != nil {
				steps[j].Error = st.Err.Error()
			}
		}
		rawSteps, err := json.Marshal(steps)
		if err != nil {
			return fmt.Errorf("failed to encode steps of %s: %w", r.ID, err)
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		rows[i] = []any{
			runID, r.ID, r.Title, string(r.Suite), r.Passed,
			r.Started.UTC(), r.Duration.Milliseconds(),
			r.FailedStep, string(r.Kind), errText, r.LastURL, rawSteps,
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"scenario_results"}, resultColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy scenario results: %w", err)
	}
	if int(copyCount) != len(results) {
		return fmt.Errorf("mismatch in copied results count: expected %d, got %d", len(results), copyCount)
	}
	return nil
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID          uuid.UUID
	Started     time.Time
	Duration    time.Duration
	Total       int
	Failed      int
	ToolVersion string
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
        SELECT id, started_at, duration_ms, total, failed, tool_version
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Started, &durationMS, &r.Total, &r.Failed, &r.ToolVersion); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

// StoredResult is a scenario result read back from the database. Errors come back as text.
type StoredResult struct {
	ScenarioID string
	Title      string
	Suite      scenario.Suite
	Passed     bool
	Started    time.Time
	Duration   time.Duration
	FailedStep string
	Kind       string
	Error      string
	LastURL    string
}

// ResultsByRunID returns the scenario results of one run ordered by scenario id.
func (s *Store) ResultsByRunID(ctx context.Context, runID uuid.UUID) ([]StoredResult, error) {
	query := `
        SELECT scenario_id, title, suite, passed, started_at, duration_ms, failed_step, kind, error, last_url
        FROM scenario_results
        WHERE run_id = $1
        ORDER BY scenario_id ASC;
    `
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario results: %w", err)
	}
	defer rows.Close()

	var results []StoredResult
	for rows.Next() {
		var r StoredResult
		var suite string
		var durationMS int64
		err := rows.Scan(
			&r.ScenarioID, &r.Title, &suite, &r.Passed, &r.Started, &durationMS,
			&r.FailedStep, &r.Kind, &r.Error, &r.LastURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		r.Suite = scenario.Suite(suite)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return results, nil
}
