package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "modernc.org/sqlite"

	"tipflow/internal/config"
)

// Store is the SQLite run log: one row per run plus its step checkpoints.
type Store struct {
	db   *sql.DB
	path string
}

// SQLITE_BUSY and its extended codes share the low byte.
const sqliteBusy = 5

const (
	busyMaxTries     = 5
	busyFirstBackoff = 10 * time.Millisecond
	busyMaxBackoff   = 200 * time.Millisecond
)

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func busy(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code()&0xff == sqliteBusy
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withBusyRetry repeats op while SQLite reports the database locked. Any
// other error ends the loop immediately.
func withBusyRetry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = busyFirstBackoff
	policy.MaxInterval = busyMaxBackoff
	policy.RandomizationFactor = 0.2

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err != nil && !busy(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(busyMaxTries))
	return err
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = orBackground(ctx)
	var res sql.Result
	err := withBusyRetry(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Open connects to the run log under cfg.DataDir, creating the database and
// its tables on first use.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare data directory: %w", err)
	}

	path := cfg.DatabasePath()
	// Pooled connections each apply the DSN pragmas on connect.
	db, err := sql.Open("sqlite", "file:"+path+"?"+strings.Join([]string{
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}, "&"))
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	store := &Store{db: db, path: path}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect run log %s: %w", path, err)
	}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path reports where the run log lives on disk.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
