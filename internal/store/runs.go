package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Run is the persisted record of one finished import.
type Run struct {
	ID         uuid.UUID     `json:"id"`
	Target     string        `json:"target"`
	FileName   string        `json:"fileName"`
	State      string        `json:"state"`
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Invalid    int           `json:"invalid"`
	Duplicates int           `json:"duplicates"`
	Truncated  int           `json:"truncated"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// RunStore reads and writes import_runs.
type RunStore struct {
	db DBTX
}

// NewRunStore creates a RunStore.
func NewRunStore(db DBTX) *RunStore {
	return &RunStore{db: db}
}

// Record inserts a finished run.
func (s *RunStore) Record(ctx context.Context, r Run) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO import_runs (id, target, file_name, state, total, successful, failed,
			invalid, duplicates, truncated, duration_ms, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, r.Target, r.FileName, r.State, r.Total, r.Successful, r.Failed,
		r.Invalid, r.Duplicates, r.Truncated, r.Duration.Milliseconds(), r.Error,
		r.StartedAt, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("record import run: %w", err)
	}
	return nil
}

// Recent returns the latest runs for target, newest first.
func (s *RunStore) Recent(ctx context.Context, target string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, target, file_name, state, total, successful, failed, invalid,
			duplicates, truncated, duration_ms, error, started_at, finished_at
		FROM import_runs
		WHERE target = $1
		ORDER BY started_at DESC
		LIMIT $2`, target, limit)
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("scan import runs: %w", err)
	}
	return runs, nil
}

// PurgeOlderThan deletes runs that finished before cutoff.
func (s *RunStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM import_runs WHERE finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge import runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRun(row pgx.CollectableRow) (Run, error) {
	var (
		r  Run
		ms int64
	)
	err := row.Scan(&r.ID, &r.Target, &r.FileName, &r.State, &r.Total, &r.Successful,
		&r.Failed, &r.Invalid, &r.Duplicates, &r.Truncated, &ms, &r.Error,
		&r.StartedAt, &r.FinishedAt)
	r.Duration = time.Duration(ms) * time.Millisecond
	return r, err
}
