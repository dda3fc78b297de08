package queue

import (
	"context"
	"fmt"
	"time"
)

// ResetRunning returns every running run to pending. The daemon calls this on
// startup because no worker can own a run before the manager starts.
func (s *Store) ResetRunning(ctx context.Context) (int64, error) {
	res, err := s.exec(
		ctx,
		`UPDATE runs SET status = ?, last_heartbeat = NULL, updated_at = ? WHERE status = ?`,
		StatusPending,
		formatNow(),
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset running runs: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight run.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := formatNow()
	if _, err := s.exec(
		ctx,
		`UPDATE runs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now,
		now,
		id,
		StatusRunning,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale returns running runs whose heartbeat expired before cutoff to
// pending so another worker resumes them from their step log.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(
		ctx,
		`UPDATE runs SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending,
		formatNow(),
		StatusRunning,
		cutoff.UTC().Format(storedTimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale runs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed runs back to pending. Their step log is kept so
// the retried run skips every step that already completed.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		res, err := s.exec(
			ctx,
			`UPDATE runs SET status = ?, error_message = NULL, error_kind = NULL, finished_at = NULL, updated_at = ?
             WHERE status = ?`,
			StatusPending,
			formatNow(),
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed runs: %w", err)
		}
		return res.RowsAffected()
	}

	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, formatNow())
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed)
	query := `UPDATE runs SET status = ?, error_message = NULL, error_kind = NULL, finished_at = NULL, updated_at = ?
        WHERE id IN (` + makePlaceholders(len(ids)) + `) AND status = ?`
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected runs: %w", err)
	}
	return res.RowsAffected()
}
