package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"tipflow/internal/queue"
	"tipflow/internal/testsupport"
)

const testWorkflow = "tip-video-uploaded"

func TestOpenCreatesSchemaAndRoundTripsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := store.NewRun(ctx, testWorkflow, `{"videoResourceId":"vr1"}`, "req-1")
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	if run.ID == "" || run.Status != queue.StatusPending || run.Attempts != 0 {
		t.Fatalf("unexpected new run: %#v", run)
	}

	fetched, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if fetched == nil || fetched.EventJSON != `{"videoResourceId":"vr1"}` || fetched.CorrelationID != "req-1" {
		t.Fatalf("unexpected fetched run: %#v", fetched)
	}

	missing, err := store.GetRun(ctx, "does-not-exist")
	if err != nil || missing != nil {
		t.Fatalf("expected nil run for unknown id, got %#v (%v)", missing, err)
	}

	byPrefix, err := store.FindRunByPrefix(ctx, run.ID[:8])
	if err != nil || byPrefix == nil || byPrefix.ID != run.ID {
		t.Fatalf("FindRunByPrefix = %#v, %v", byPrefix, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	run, err := store.NewRun(context.Background(), testWorkflow, `{}`, "")
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	store.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	fetched, err := reopened.GetRun(context.Background(), run.ID)
	if err != nil || fetched == nil {
		t.Fatalf("expected run to survive reopen, got %#v (%v)", fetched, err)
	}
}

func TestOpenRejectsForeignRunLogVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = first.Close()

	db, err := sql.Open("sqlite", "file:"+cfg.DatabasePath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("stamp version: %v", err)
	}
	_ = db.Close()

	store, err := queue.Open(cfg)
	if err == nil {
		_ = store.Close()
		t.Fatal("expected open to fail on a foreign version")
	}
	if !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestNewRunValidatesInput(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := store.NewRun(ctx, "", `{}`, ""); err == nil {
		t.Fatal("expected error for missing workflow")
	}
	if _, err := store.NewRun(ctx, testWorkflow, " ", ""); err == nil {
		t.Fatal("expected error for missing payload")
	}
}

func TestNewRunSameCorrelationReturnsExistingRun(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, err := store.NewRun(ctx, testWorkflow, `{"n":1}`, "evt-1")
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	again, err := store.NewRun(ctx, testWorkflow, `{"n":2}`, " evt-1 ")
	if err != nil {
		t.Fatalf("repeat NewRun failed: %v", err)
	}
	if again.ID != first.ID || again.EventJSON != `{"n":1}` {
		t.Fatalf("expected the first run back, got %#v", again)
	}

	other, err := store.NewRun(ctx, "other-workflow", `{}`, "evt-1")
	if err != nil || other.ID == first.ID {
		t.Fatalf("same id in another workflow should be a new run, got %#v (%v)", other, err)
	}
	a, _ := store.NewRun(ctx, testWorkflow, `{}`, "")
	b, _ := store.NewRun(ctx, testWorkflow, `{}`, "")
	if a == nil || b == nil || a.ID == b.ID {
		t.Fatalf("runs without a correlation id must stay distinct: %#v %#v", a, b)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil || len(runs) != 4 {
		t.Fatalf("expected 4 runs, got %d (%v)", len(runs), err)
	}
}

func TestFindRunByPrefixTreatsWildcardsLiterally(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewRun(t, store, testWorkflow, `{}`)
	testsupport.NewRun(t, store, testWorkflow, `{}`)

	for _, prefix := range []string{"%", "_", `\`} {
		run, err := store.FindRunByPrefix(ctx, prefix)
		if err != nil || run != nil {
			t.Fatalf("FindRunByPrefix(%q) = %#v, %v; want not found", prefix, run, err)
		}
	}
}

func TestOpenUpgradesVersionOneRunLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = first.Close()

	db, err := sql.Open("sqlite", "file:"+cfg.DatabasePath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	for _, stmt := range []string{"DROP INDEX idx_runs_workflow_correlation", "PRAGMA user_version = 1"} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	_ = db.Close()

	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	created, err := store.NewRun(ctx, testWorkflow, `{}`, "evt-7")
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	again, err := store.NewRun(ctx, testWorkflow, `{}`, "evt-7")
	if err != nil || again.ID != created.ID {
		t.Fatalf("upgraded log should dedupe by event id, got %#v (%v)", again, err)
	}
}

func TestClaimNextIsOrderedAndExclusive(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.NewRun(t, store, testWorkflow, `{"n":1}`)
	second := testsupport.NewRun(t, store, testWorkflow, `{"n":2}`)
	testsupport.NewRun(t, store, "other-workflow", `{"n":3}`)

	claimed, err := store.ClaimNext(ctx, testWorkflow)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest run %s, got %#v", first.ID, claimed)
	}
	if claimed.Status != queue.StatusRunning || claimed.Attempts != 1 || claimed.StartedAt == nil || claimed.LastHeartbeat == nil {
		t.Fatalf("unexpected claimed run state: %#v", claimed)
	}

	next, err := store.ClaimNext(ctx, testWorkflow)
	if err != nil || next == nil || next.ID != second.ID {
		t.Fatalf("expected second run, got %#v (%v)", next, err)
	}

	none, err := store.ClaimNext(ctx, testWorkflow)
	if err != nil || none != nil {
		t.Fatalf("expected nothing runnable, got %#v (%v)", none, err)
	}
}

func TestClaimNextConcurrentWorkersNeverShareRuns(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	const total = 12
	for i := 0; i < total; i++ {
		testsupport.NewRun(t, store, testWorkflow, `{}`)
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				run, err := store.ClaimNext(ctx, testWorkflow)
				if err != nil {
					t.Errorf("ClaimNext failed: %v", err)
					return
				}
				if run == nil {
					return
				}
				mu.Lock()
				seen[run.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("expected %d distinct claims, got %d", total, len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("run %s claimed %d times", id, count)
		}
	}
}

func TestStepLogFirstResultWins(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	run := testsupport.NewRun(t, store, testWorkflow, `{}`)

	attempt, err := store.BeginStep(ctx, run.ID, "create the mux asset")
	if err != nil || attempt != 1 {
		t.Fatalf("BeginStep = %d, %v", attempt, err)
	}
	attempt, err = store.BeginStep(ctx, run.ID, "create the mux asset")
	if err != nil || attempt != 2 {
		t.Fatalf("second BeginStep = %d, %v", attempt, err)
	}

	stored, err := store.CompleteStep(ctx, run.ID, "create the mux asset", `{"id":"asset1"}`)
	if err != nil || !stored {
		t.Fatalf("CompleteStep = %v, %v", stored, err)
	}
	stored, err = store.CompleteStep(ctx, run.ID, "create the mux asset", `{"id":"asset2"}`)
	if err != nil || stored {
		t.Fatalf("expected second completion to be ignored, got %v, %v", stored, err)
	}
	if attempt, err := store.BeginStep(ctx, run.ID, "create the mux asset"); err != nil || attempt != 0 {
		t.Fatalf("expected BeginStep on completed step to report 0, got %d, %v", attempt, err)
	}
	if err := store.FailStep(ctx, run.ID, "create the mux asset", "late failure"); err != nil {
		t.Fatalf("FailStep failed: %v", err)
	}

	step, err := store.Step(ctx, run.ID, "create the mux asset")
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if !step.Completed() || step.ResultJSON != `{"id":"asset1"}` || step.Attempts != 2 || step.CompletedAt == nil {
		t.Fatalf("unexpected step state: %#v", step)
	}
}

func TestFailStepAndStepsOrder(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	run := testsupport.NewRun(t, store, testWorkflow, `{}`)

	if _, err := store.CompleteStep(ctx, run.ID, "announce video resource created", `null`); err != nil {
		t.Fatalf("CompleteStep failed: %v", err)
	}
	if _, err := store.BeginStep(ctx, run.ID, "get the video resource from the content store"); err != nil {
		t.Fatalf("BeginStep failed: %v", err)
	}
	if err := store.FailStep(ctx, run.ID, "get the video resource from the content store", "not found"); err != nil {
		t.Fatalf("FailStep failed: %v", err)
	}

	steps, err := store.Steps(ctx, run.ID)
	if err != nil {
		t.Fatalf("Steps failed: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Name != "announce video resource created" || steps[1].Status != queue.StepFailed || steps[1].ErrorMessage != "not found" {
		t.Fatalf("unexpected steps: %#v %#v", steps[0], steps[1])
	}
	if _, err := store.BeginStep(ctx, "", "x"); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestReclaimStaleHonoursCutoff(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	stale := testsupport.NewRun(t, store, testWorkflow, `{}`)
	fresh := testsupport.NewRun(t, store, testWorkflow, `{}`)
	for range 2 {
		if _, err := store.ClaimNext(ctx, testWorkflow); err != nil {
			t.Fatalf("ClaimNext failed: %v", err)
		}
	}

	old := time.Now().Add(-10 * time.Minute).UTC()
	staleRun, _ := store.GetRun(ctx, stale.ID)
	staleRun.LastHeartbeat = &old
	if err := store.Update(ctx, staleRun); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed run, got %d", reclaimed)
	}
	if run, _ := store.GetRun(ctx, stale.ID); run.Status != queue.StatusPending || run.LastHeartbeat != nil {
		t.Fatalf("expected stale run pending, got %#v", run)
	}
	if run, _ := store.GetRun(ctx, fresh.ID); run.Status != queue.StatusRunning {
		t.Fatalf("expected fresh run still running, got %s", run.Status)
	}

	reset, err := store.ResetRunning(ctx)
	if err != nil || reset != 1 {
		t.Fatalf("ResetRunning = %d, %v", reset, err)
	}
}

func TestRetryFailedKeepsStepLog(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	failed := testsupport.NewRun(t, store, testWorkflow, `{}`)
	other := testsupport.NewRun(t, store, testWorkflow, `{}`)
	if _, err := store.CompleteStep(ctx, failed.ID, "create the mux asset", `{"id":"asset1"}`); err != nil {
		t.Fatalf("CompleteStep failed: %v", err)
	}
	for _, id := range []string{failed.ID, other.ID} {
		run, _ := store.GetRun(ctx, id)
		now := time.Now().UTC()
		run.Status = queue.StatusFailed
		run.ErrorMessage = "boom"
		run.FinishedAt = &now
		if err := store.Update(ctx, run); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	updated, err := store.RetryFailed(ctx, failed.ID)
	if err != nil || updated != 1 {
		t.Fatalf("RetryFailed = %d, %v", updated, err)
	}
	run, _ := store.GetRun(ctx, failed.ID)
	if run.Status != queue.StatusPending || run.ErrorMessage != "" || run.FinishedAt != nil {
		t.Fatalf("unexpected retried run: %#v", run)
	}
	step, _ := store.Step(ctx, failed.ID, "create the mux asset")
	if !step.Completed() {
		t.Fatalf("expected completed step to survive retry, got %#v", step)
	}
	if run, _ := store.GetRun(ctx, other.ID); run.Status != queue.StatusFailed {
		t.Fatalf("expected unrelated run to stay failed, got %s", run.Status)
	}

	all, err := store.RetryFailed(ctx)
	if err != nil || all != 1 {
		t.Fatalf("RetryFailed(all) = %d, %v", all, err)
	}
}

func TestListRunsAndHealth(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewRun(t, store, testWorkflow, `{}`)
	testsupport.NewRun(t, store, testWorkflow, `{}`)
	if _, err := store.ClaimNext(ctx, testWorkflow); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	pending, err := store.ListRuns(ctx, queue.StatusPending)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListRuns(pending) = %d, %v", len(pending), err)
	}
	all, err := store.ListRuns(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListRuns() = %d, %v", len(all), err)
	}
	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Running != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}
}

func TestPurgeCompletedCascadesSteps(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	run := testsupport.NewRun(t, store, testWorkflow, `{}`)
	if _, err := store.CompleteStep(ctx, run.ID, "order the transcript", `{"request_id":"r"}`); err != nil {
		t.Fatalf("CompleteStep failed: %v", err)
	}
	fetched, _ := store.GetRun(ctx, run.ID)
	finished := time.Now().Add(-48 * time.Hour).UTC()
	fetched.Status = queue.StatusCompleted
	fetched.FinishedAt = &finished
	if err := store.Update(ctx, fetched); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	purged, err := store.PurgeCompleted(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || purged != 1 {
		t.Fatalf("PurgeCompleted = %d, %v", purged, err)
	}
	steps, err := store.Steps(ctx, run.ID)
	if err != nil || len(steps) != 0 {
		t.Fatalf("expected steps to cascade, got %d (%v)", len(steps), err)
	}
}

func TestParseStatus(t *testing.T) {
	if status, err := queue.ParseStatus(" Failed "); err != nil || status != queue.StatusFailed {
		t.Fatalf("ParseStatus = %q, %v", status, err)
	}
	if _, err := queue.ParseStatus("review"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
