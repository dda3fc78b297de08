package queue

import (
	"context"
	"fmt"
	"time"
)

// Stats counts runs per status. Every known status is present in the map,
// zero when no run has it.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	counts := make(map[Status]int, len(AllStatuses()))
	for _, st := range AllStatuses() {
		counts[st] = 0
	}
	rows, err := s.db.QueryContext(orBackground(ctx), `SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count runs by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			st Status
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan run count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

// Health totals the run log for `tipflow status`.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	counts, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	h := HealthSummary{
		Pending:   counts[StatusPending],
		Running:   counts[StatusRunning],
		Completed: counts[StatusCompleted],
		Failed:    counts[StatusFailed],
	}
	for _, n := range counts {
		h.Total += n
	}
	return h, nil
}

// PurgeCompleted deletes completed runs that finished before cutoff. Their
// step checkpoints go with them through ON DELETE CASCADE. Failed runs are
// kept so they can still be retried.
func (s *Store) PurgeCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM runs WHERE status = ? AND finished_at < ?`,
		StatusCompleted, cutoff.UTC().Format(storedTimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("purge completed runs: %w", err)
	}
	return res.RowsAffected()
}
