package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Run describes a workflow run in a transport-friendly format.
type Run struct {
	ID            string          `json:"id"`
	Workflow      string          `json:"workflow"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	ErrorKind     string          `json:"errorKind,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	CreatedAt     string          `json:"createdAt,omitempty"`
	UpdatedAt     string          `json:"updatedAt,omitempty"`
	StartedAt     string          `json:"startedAt,omitempty"`
	FinishedAt    string          `json:"finishedAt,omitempty"`
	Event         json.RawMessage `json:"event,omitempty"`
	Output        json.RawMessage `json:"output,omitempty"`
}

// Step describes one checkpoint of a run's step log.
type Step struct {
	Name         string          `json:"name"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	StartedAt    string          `json:"startedAt,omitempty"`
	CompletedAt  string          `json:"completedAt,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}

// WorkflowStatus summarizes manager execution state.
type WorkflowStatus struct {
	Running        bool             `json:"running"`
	Workers        int              `json:"workers"`
	QueueStats     map[string]int   `json:"queueStats"`
	LastError      string           `json:"lastError,omitempty"`
	LastRun        *Run             `json:"lastRun,omitempty"`
	WorkflowHealth []WorkflowHealth `json:"workflowHealth"`
}

// WorkflowHealth mirrors readiness reporting for registered workflows.
type WorkflowHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	DatabasePath  string         `json:"databasePath"`
	LockFilePath  string         `json:"lockFilePath"`
	BrokerEnabled bool           `json:"brokerEnabled"`
	Workflow      WorkflowStatus `json:"workflow"`
}

// RunListResponse wraps a collection of runs.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// RunDetailResponse wraps a run and its step log.
type RunDetailResponse struct {
	Run   Run    `json:"run"`
	Steps []Step `json:"steps"`
}

// EventAcceptedResponse acknowledges an enqueued event.
type EventAcceptedResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// RetryResponse reports how many runs returned to pending.
type RetryResponse struct {
	Updated int64 `json:"updated"`
}

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
