package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tipflow/internal/logging"
	"tipflow/internal/notifications"
	"tipflow/internal/queue"
	"tipflow/internal/stage"
)

func (m *Manager) notifyRunCompleted(ctx context.Context, logger *slog.Logger, run *queue.Run, output any) {
	if m.notifier == nil {
		return
	}
	payload := notifications.Payload{
		"runId":    run.ID,
		"workflow": run.Workflow,
	}
	if summarizer, ok := output.(stage.Summarizer); ok {
		for key, value := range summarizer.Summary() {
			payload[key] = value
		}
	}
	m.publish(ctx, logger, notifications.EventRunCompleted, payload)
}

func (m *Manager) notifyRunError(ctx context.Context, logger *slog.Logger, run *queue.Run, message string) {
	if m.notifier == nil {
		return
	}
	m.publish(ctx, logger, notifications.EventError, notifications.Payload{
		"error":   message,
		"context": fmt.Sprintf("%s (run %s)", run.Workflow, shortRunID(run.ID)),
		"runId":   run.ID,
	})
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, notification skipped", logging.String("notification", string(event)))
			return
		}
		logger.Debug("notification failed",
			logging.String("notification", string(event)),
			logging.Error(err),
		)
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
