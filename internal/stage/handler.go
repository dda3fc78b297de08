package stage

import (
	"context"
	"log/slog"

	"tipflow/internal/queue"
	"tipflow/internal/step"
)

// Handler describes the contract the workflow manager needs from each
// registered workflow. Execute runs one attempt of run; every side effect it
// performs should go through runner so a later attempt can resume.
type Handler interface {
	Workflow() string
	Execute(ctx context.Context, run *queue.Run, runner *step.Runner) (any, error)
	HealthCheck(context.Context) Health
}

// LoggerAware handlers receive their base logger once, at registration.
// Run fields are attached per call from the Execute context.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Summarizer outputs contribute fields to the run completion notification.
type Summarizer interface {
	Summary() map[string]any
}

// Health is what a handler reports about its own readiness. Workflow is a
// copy of the handler's Workflow name so a Health can be logged on its own.
type Health struct {
	Workflow string `json:"workflow"`
	Ready    bool   `json:"ready"`
	Detail   string `json:"detail,omitempty"`
}

// Ready reports that workflow can accept runs.
func Ready(workflow string) Health {
	return Health{Workflow: workflow, Ready: true}
}

// NotReady reports that runs of workflow would fail, with reason explaining
// what an operator needs to fix.
func NotReady(workflow, reason string) Health {
	return Health{Workflow: workflow, Detail: reason}
}

func (h Health) String() string {
	if h.Ready {
		return h.Workflow + ": ready"
	}
	if h.Detail == "" {
		return h.Workflow + ": not ready"
	}
	return h.Workflow + ": not ready (" + h.Detail + ")"
}
