package queue

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// runLogVersion is stamped into PRAGMA user_version. A fresh database
// reports zero, which is never a valid run log version.
//
// Version 2 adds the unique (workflow, correlation_id) index that makes a
// redelivered event resolve to the run it already created.
const runLogVersion = 2

const correlationIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_workflow_correlation
    ON runs (workflow, correlation_id) WHERE correlation_id IS NOT NULL`

// ErrSchemaMismatch is returned by Open when the database was written by a
// different run log layout.
var ErrSchemaMismatch = errors.New("run log schema mismatch")

func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read run log version: %w", err)
	}
	switch current {
	case runLogVersion:
		return nil
	case 0:
		return s.bootstrap(ctx)
	case 1:
		return s.addCorrelationIndex(ctx)
	default:
		return fmt.Errorf("%w: %s is at version %d, tipflow expects %d; remove it to start a fresh run log",
			ErrSchemaMismatch, s.path, current, runLogVersion)
	}
}

// bootstrap creates the tables and stamps the version in one transaction so
// a crash mid-way leaves user_version at zero and the next Open retries.
func (s *Store) bootstrap(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bootstrap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create run log tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx, correlationIndexSQL); err != nil {
		return fmt.Errorf("index run correlation ids: %w", err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", runLogVersion)); err != nil {
		return fmt.Errorf("stamp run log version: %w", err)
	}
	return tx.Commit()
}

// addCorrelationIndex upgrades a version 1 run log in place. It fails when
// the log already holds two runs for the same event id; those duplicates
// must be removed by hand before the daemon can start.
func (s *Store) addCorrelationIndex(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run log upgrade: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, correlationIndexSQL); err != nil {
		return fmt.Errorf("index run correlation ids in %s: %w", s.path, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", runLogVersion)); err != nil {
		return fmt.Errorf("stamp run log version: %w", err)
	}
	return tx.Commit()
}
