package api

import (
	"encoding/json"
	"testing"
	"time"

	"tipflow/internal/queue"
	"tipflow/internal/stage"
	"tipflow/internal/workflow"
)

func TestFromRunPassesPayloadsThrough(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &queue.Run{
		ID:         "run-1",
		Workflow:   "tip-video-uploaded",
		Status:     queue.StatusCompleted,
		Attempts:   2,
		EventJSON:  `{"videoResourceId":"vr1"}`,
		OutputJSON: `not json`,
		CreatedAt:  started,
		StartedAt:  &started,
	}

	dto := FromRun(run)
	if dto.Status != "completed" || dto.Attempts != 2 {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if string(dto.Event) != `{"videoResourceId":"vr1"}` {
		t.Fatalf("event not passed through: %s", dto.Event)
	}
	if dto.Output != nil {
		t.Fatalf("invalid output should be dropped, got %s", dto.Output)
	}
	if dto.StartedAt != "2026-03-01T12:00:00.000Z" || dto.FinishedAt != "" {
		t.Fatalf("unexpected timestamps %q %q", dto.StartedAt, dto.FinishedAt)
	}

	encoded, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["output"]; ok {
		t.Fatal("expected output to be omitted")
	}
}

func TestFromStatusSummarySortsHealthAndFillsStats(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:    true,
		Workers:    2,
		QueueStats: map[queue.Status]int{queue.StatusPending: 3},
		WorkflowHealth: map[string]stage.Health{
			"zeta":  stage.Ready("zeta"),
			"alpha": stage.NotReady("alpha", "missing token"),
		},
		LastRun: &queue.Run{ID: "run-9", Status: queue.StatusFailed},
	}

	wf := FromStatusSummary(summary)
	if len(wf.WorkflowHealth) != 2 || wf.WorkflowHealth[0].Name != "alpha" {
		t.Fatalf("expected sorted health, got %+v", wf.WorkflowHealth)
	}
	if wf.QueueStats["pending"] != 3 || wf.QueueStats["failed"] != 0 {
		t.Fatalf("unexpected stats %v", wf.QueueStats)
	}
	if _, ok := wf.QueueStats["running"]; !ok {
		t.Fatal("expected every status key to be present")
	}
	if wf.LastRun == nil || wf.LastRun.ID != "run-9" {
		t.Fatalf("unexpected last run %+v", wf.LastRun)
	}
}
