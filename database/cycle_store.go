// database/cycle_store.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gewnthar/agendawatch/models"
)

// RecordCycle inserts the outcome of a run cycle. Recording the same run id
// twice overwrites the earlier row so a cycle can be logged at start and finish.
func (s *Store) RecordCycle(ctx context.Context, run models.CycleRun) error {
	if err := s.ready(); err != nil {
		return err
	}
	if run.RunID == "" {
		return fmt.Errorf("cycle run id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for cycle %s: %w", run.RunID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cycle_runs WHERE run_id = ?`, run.RunID); err != nil {
		return fmt.Errorf("failed to replace cycle %s: %w", run.RunID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cycle_runs (
			run_id, listing_url, started_at, finished_at,
			candidates, new_meetings, notifications, status, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID, run.ListingURL, formatTimestamp(run.StartedAt), nullTimestamp(run.FinishedAt),
		run.Candidates, run.NewMeetings, run.Notifications, run.Status, run.Error,
	)
	if err != nil {
		s.log.Error("failed to record cycle", "run_id", run.RunID, "error", err)
		return fmt.Errorf("failed to record cycle %s: %w", run.RunID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle %s: %w", run.RunID, err)
	}

	s.log.Debug("recorded cycle", "run_id", run.RunID, "status", run.Status)
	return nil
}

// LastCycle returns the most recently started cycle, or nil if none was recorded.
func (s *Store) LastCycle(ctx context.Context) (*models.CycleRun, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var (
		run        models.CycleRun
		startedAt  string
		finishedAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, listing_url, started_at, finished_at,
		       candidates, new_meetings, notifications, status, error
		FROM cycle_runs
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(
		&run.RunID, &run.ListingURL, &startedAt, &finishedAt,
		&run.Candidates, &run.NewMeetings, &run.Notifications, &run.Status, &run.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last cycle: %w", err)
	}

	if run.StartedAt, err = parseTimestamp(startedAt); err != nil {
		return nil, fmt.Errorf("cycle %s: bad started_at %q: %w", run.RunID, startedAt, err)
	}
	if run.FinishedAt, err = parseNullTimestamp(finishedAt); err != nil {
		return nil, fmt.Errorf("cycle %s: bad finished_at %q: %w", run.RunID, finishedAt.String, err)
	}
	return &run, nil
}
