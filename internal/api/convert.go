package api

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"tipflow/internal/queue"
	"tipflow/internal/stage"
	"tipflow/internal/workflow"
)

// FromRun converts a run record to its API representation.
func FromRun(run *queue.Run) Run {
	if run == nil {
		return Run{}
	}
	return Run{
		ID:            run.ID,
		Workflow:      run.Workflow,
		Status:        string(run.Status),
		Attempts:      run.Attempts,
		ErrorMessage:  run.ErrorMessage,
		ErrorKind:     run.ErrorKind,
		CorrelationID: run.CorrelationID,
		CreatedAt:     FormatTime(run.CreatedAt),
		UpdatedAt:     FormatTime(run.UpdatedAt),
		StartedAt:     formatTimePtr(run.StartedAt),
		FinishedAt:    formatTimePtr(run.FinishedAt),
		Event:         rawJSON(run.EventJSON),
		Output:        rawJSON(run.OutputJSON),
	}
}

// FromRuns converts a slice of run records into API DTOs.
func FromRuns(runs []*queue.Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromStep converts a step log record.
func FromStep(step *queue.Step) Step {
	if step == nil {
		return Step{}
	}
	return Step{
		Name:         step.Name,
		Status:       string(step.Status),
		Attempts:     step.Attempts,
		ErrorMessage: step.ErrorMessage,
		StartedAt:    FormatTime(step.StartedAt),
		CompletedAt:  formatTimePtr(step.CompletedAt),
		Result:       rawJSON(step.ResultJSON),
	}
}

// FromSteps converts a run's step log in stored order.
func FromSteps(steps []*queue.Step) []Step {
	out := make([]Step, 0, len(steps))
	for _, step := range steps {
		out = append(out, FromStep(step))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:        summary.Running,
		Workers:        summary.Workers,
		QueueStats:     MergeQueueStats(summary.QueueStats),
		LastError:      summary.LastError,
		WorkflowHealth: WorkflowHealthSlice(summary.WorkflowHealth),
	}
	if summary.LastRun != nil {
		last := FromRun(summary.LastRun)
		wf.LastRun = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of queue stats with
// every status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// WorkflowHealthSlice converts a health map into a deterministic slice.
func WorkflowHealthSlice(health map[string]stage.Health) []WorkflowHealth {
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]WorkflowHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, WorkflowHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

// rawJSON passes stored JSON through untouched; anything unparsable is
// dropped rather than corrupting the response.
func rawJSON(value string) json.RawMessage {
	value = strings.TrimSpace(value)
	if value == "" || !json.Valid([]byte(value)) {
		return nil
	}
	return json.RawMessage(value)
}
