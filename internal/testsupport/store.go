package testsupport

import (
	"context"
	"testing"

	"tipflow/internal/config"
	"tipflow/internal/queue"
)

// MustOpenStore opens the run log described by cfg. The store is closed when
// the test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open run log at %s: %v", cfg.DatabasePath(), err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("close run log: %v", err)
		}
	})
	return store
}

// NewRun enqueues a pending run with no correlation id, so repeated calls in
// one test always create distinct runs.
func NewRun(t testing.TB, store *queue.Store, workflow, eventJSON string) *queue.Run {
	t.Helper()
	run, err := store.NewRun(context.Background(), workflow, eventJSON, "")
	if err != nil {
		t.Fatalf("enqueue %s run: %v", workflow, err)
	}
	return run
}
