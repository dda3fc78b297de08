package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Step returns the checkpoint for (runID, name). A missing step yields (nil, nil).
func (s *Store) Step(ctx context.Context, runID, name string) (*Step, error) {
	row := s.db.QueryRowContext(orBackground(ctx),
		`SELECT `+stepColumns+` FROM steps WHERE run_id = ? AND name = ?`, runID, name)
	step, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}
	return step, nil
}

// Steps returns a run's step log in the order steps were first started.
func (s *Store) Steps(ctx context.Context, runID string) ([]*Step, error) {
	rows, err := s.db.QueryContext(orBackground(ctx),
		`SELECT `+stepColumns+` FROM steps WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// BeginStep records an attempt of a step and returns the attempt number. A
// completed step is left untouched and reported with attempt 0.
func (s *Store) BeginStep(ctx context.Context, runID, name string) (int, error) {
	if err := validateStepKey(runID, name); err != nil {
		return 0, err
	}
	now := formatNow()
	if _, err := s.exec(
		ctx,
		`INSERT INTO steps (run_id, name, status, attempts, started_at, updated_at)
         VALUES (?, ?, ?, 1, ?, ?)
         ON CONFLICT (run_id, name) DO UPDATE
         SET status = excluded.status, attempts = steps.attempts + 1,
             error_message = NULL, updated_at = excluded.updated_at
         WHERE steps.status <> ?`,
		runID, name, StepRunning, now, now, StepCompleted,
	); err != nil {
		return 0, fmt.Errorf("begin step %q: %w", name, err)
	}
	step, err := s.Step(ctx, runID, name)
	if err != nil {
		return 0, err
	}
	if step == nil || step.Completed() {
		return 0, nil
	}
	return step.Attempts, nil
}

// CompleteStep commits a step's JSON result. The first committed result wins:
// completing an already completed step reports false and keeps the stored value.
func (s *Store) CompleteStep(ctx context.Context, runID, name, resultJSON string) (bool, error) {
	if err := validateStepKey(runID, name); err != nil {
		return false, err
	}
	now := formatNow()
	res, err := s.exec(
		ctx,
		`INSERT INTO steps (run_id, name, status, attempts, result_json, started_at, updated_at, completed_at)
         VALUES (?, ?, ?, 1, ?, ?, ?, ?)
         ON CONFLICT (run_id, name) DO UPDATE
         SET status = excluded.status, result_json = excluded.result_json, error_message = NULL,
             updated_at = excluded.updated_at, completed_at = excluded.completed_at
         WHERE steps.status <> ?`,
		runID, name, StepCompleted, resultJSON, now, now, now, StepCompleted,
	)
	if err != nil {
		return false, fmt.Errorf("complete step %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete step %q: %w", name, err)
	}
	return affected > 0, nil
}

// FailStep records that a step exhausted its attempts.
func (s *Store) FailStep(ctx context.Context, runID, name, message string) error {
	if err := validateStepKey(runID, name); err != nil {
		return err
	}
	if _, err := s.exec(
		ctx,
		`UPDATE steps SET status = ?, error_message = ?, updated_at = ?
         WHERE run_id = ? AND name = ? AND status <> ?`,
		StepFailed, nullableString(message), formatNow(), runID, name, StepCompleted,
	); err != nil {
		return fmt.Errorf("fail step %q: %w", name, err)
	}
	return nil
}

func validateStepKey(runID, name string) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("step run id is required")
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("step name is required")
	}
	return nil
}
