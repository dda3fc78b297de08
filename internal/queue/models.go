package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a workflow run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrAmbiguousID is returned when a run id prefix matches more than one run.
var ErrAmbiguousID = errors.New("run id prefix is ambiguous")

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
}

// AllStatuses returns every run status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus validates a user-supplied status name.
func ParseStatus(value string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown run status %q", value)
}

// IsTerminal reports whether no further work will happen without a retry.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StepStatus represents the lifecycle of a single durable step.
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Run is one execution of a workflow for one triggering event.
type Run struct {
	ID            string
	Workflow      string
	EventJSON     string
	Status        Status
	Attempts      int
	ErrorMessage  string
	ErrorKind     string
	OutputJSON    string
	CorrelationID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	LastHeartbeat *time.Time
}

// Duration returns wall time between first start and finish, or zero.
func (r *Run) Duration() time.Duration {
	if r == nil || r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// Step is a checkpoint in a run's step log.
type Step struct {
	RunID        string
	Name         string
	Status       StepStatus
	Attempts     int
	ResultJSON   string
	ErrorMessage string
	StartedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Completed reports whether the step committed a result.
func (s *Step) Completed() bool {
	return s != nil && s.Status == StepCompleted
}

// HealthSummary aggregates run counts for status output.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
}
