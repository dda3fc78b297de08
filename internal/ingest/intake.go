package ingest

import (
	"context"

	"tipflow/internal/queue"
)

// RunCreator records new pending runs. *queue.Store satisfies it.
type RunCreator interface {
	NewRun(ctx context.Context, workflow, eventJSON, correlationID string) (*queue.Run, error)
}

// Enqueue stores event as a pending run of the ingestion workflow.
func Enqueue(ctx context.Context, store RunCreator, event Event, correlationID string) (*queue.Run, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	payload, err := event.Marshal()
	if err != nil {
		return nil, err
	}
	return store.NewRun(ctx, WorkflowName, payload, correlationID)
}
