package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRun records a pending run for the given workflow and serialized event.
// A non-empty correlationID is the event id: a second NewRun with the same
// workflow and correlationID inserts nothing and returns the run the first
// call created, so redelivered events map to exactly one run.
func (s *Store) NewRun(ctx context.Context, workflow, eventJSON, correlationID string) (*Run, error) {
	workflow = strings.TrimSpace(workflow)
	if workflow == "" {
		return nil, errors.New("workflow name is required")
	}
	if strings.TrimSpace(eventJSON) == "" {
		return nil, errors.New("event payload is required")
	}
	correlationID = strings.TrimSpace(correlationID)

	id := uuid.NewString()
	timestamp := formatNow()
	res, err := s.exec(
		ctx,
		`INSERT INTO runs (
            id, workflow, event_json, status, attempts, correlation_id, created_at, updated_at
        ) VALUES (?, ?, ?, ?, 0, ?, ?, ?)
        ON CONFLICT DO NOTHING`,
		id,
		workflow,
		eventJSON,
		StatusPending,
		nullableString(correlationID),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	if inserted, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	} else if inserted == 0 && correlationID != "" {
		return s.runByCorrelation(ctx, workflow, correlationID)
	}
	return s.GetRun(ctx, id)
}

func (s *Store) runByCorrelation(ctx context.Context, workflow, correlationID string) (*Run, error) {
	row := s.db.QueryRowContext(orBackground(ctx),
		`SELECT `+runColumns+` FROM runs WHERE workflow = ? AND correlation_id = ?`, workflow, correlationID)
	run, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("load run for event %s: %w", correlationID, err)
	}
	return run, nil
}

// GetRun fetches a run by identifier. A missing run yields (nil, nil).
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(orBackground(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// FindRunByPrefix resolves an abbreviated run id as printed by the CLI.
func (s *Store) FindRunByPrefix(ctx context.Context, prefix string) (*Run, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(orBackground(ctx),
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' ORDER BY created_at LIMIT 2`,
		likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousID, prefix)
	}
}

// ListRuns returns runs filtered by status set (or all runs when no status is provided).
func (s *Store) ListRuns(ctx context.Context, statuses ...Status) ([]*Run, error) {
	var (
		rows *sql.Rows
		err  error
	)
	ctx = orBackground(ctx)

	baseQuery := `SELECT ` + runColumns + ` FROM runs`
	orderClause := ` ORDER BY created_at, rowid`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ClaimNext atomically moves the oldest pending run of one of the given
// workflows to running and returns it. It returns (nil, nil) when nothing is
// runnable. Concurrent callers never receive the same run.
func (s *Store) ClaimNext(ctx context.Context, workflows ...string) (*Run, error) {
	ctx = orBackground(ctx)
	now := formatNow()
	args := []any{StatusRunning, now, now, now, StatusPending}
	filter := ""
	if len(workflows) > 0 {
		filter = ` AND workflow IN (` + makePlaceholders(len(workflows)) + `)`
		for _, workflow := range workflows {
			args = append(args, workflow)
		}
	}
	query := `UPDATE runs
        SET status = ?, attempts = attempts + 1, started_at = COALESCE(started_at, ?),
            last_heartbeat = ?, updated_at = ?, error_message = NULL, error_kind = NULL
        WHERE id = (
            SELECT id FROM runs WHERE status = ?` + filter + ` ORDER BY created_at, rowid LIMIT 1
        )
        RETURNING ` + runColumns

	var run *Run
	err := withBusyRetry(ctx, func() error {
		claimed, scanErr := scanRun(s.db.QueryRowContext(ctx, query, args...))
		if scanErr != nil {
			return scanErr
		}
		run = claimed
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim run: %w", err)
	}
	return run, nil
}

// Update persists status, output, and failure fields of an existing run.
func (s *Store) Update(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now().UTC()
	if _, err := s.exec(
		ctx,
		`UPDATE runs
         SET status = ?, attempts = ?, error_message = ?, error_kind = ?, output_json = ?,
             updated_at = ?, started_at = ?, finished_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		run.Status,
		run.Attempts,
		nullableString(run.ErrorMessage),
		nullableString(run.ErrorKind),
		nullableString(run.OutputJSON),
		run.UpdatedAt.Format(storedTimeLayout),
		nullableTime(run.StartedAt),
		nullableTime(run.FinishedAt),
		nullableTime(run.LastHeartbeat),
		run.ID,
	); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix turns prefix into a LIKE pattern that matches it literally.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
