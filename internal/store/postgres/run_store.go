package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stakesim/stakesim/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL. Metrics snapshots
// are stored as JSONB.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a new RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Insert persists a completed run summary. Re-inserting the same run id
// replaces the stored summary, so re-archiving a run is safe.
func (s *RunStore) Insert(ctx context.Context, run domain.RunSummary) error {
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("postgres: marshal run metrics: %w", err)
	}

	const query = `
		INSERT INTO runs (run_id, profile, started_at, finished_at, metrics)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			profile = EXCLUDED.profile,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			metrics = EXCLUDED.metrics`

	if _, err := s.pool.Exec(ctx, query,
		run.RunID, run.Profile, run.StartedAt, run.FinishedAt, metrics,
	); err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", run.RunID, err)
	}
	return nil
}

// GetByID returns one run summary, or domain.ErrNotFound if the run id is
// unknown.
func (s *RunStore) GetByID(ctx context.Context, runID string) (domain.RunSummary, error) {
	const query = `SELECT run_id, profile, started_at, finished_at, metrics
		FROM runs WHERE run_id = $1`

	var (
		run     domain.RunSummary
		metrics []byte
	)
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.RunID, &run.Profile, &run.StartedAt, &run.FinishedAt, &metrics,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RunSummary{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("postgres: get run %s: %w", runID, err)
	}

	if err := json.Unmarshal(metrics, &run.Metrics); err != nil {
		return domain.RunSummary{}, fmt.Errorf("postgres: unmarshal run metrics: %w", err)
	}
	return run, nil
}

// ListRecent returns up to limit run summaries, most recently finished first.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `SELECT run_id, profile, started_at, finished_at, metrics
		FROM runs ORDER BY finished_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		var (
			run     domain.RunSummary
			metrics []byte
		)
		if err := rows.Scan(
			&run.RunID, &run.Profile, &run.StartedAt, &run.FinishedAt, &metrics,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan run row: %w", err)
		}
		if err := json.Unmarshal(metrics, &run.Metrics); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal run metrics: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent runs: %w", err)
	}
	return runs, nil
}
