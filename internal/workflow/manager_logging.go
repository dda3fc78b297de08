package workflow

import (
	"context"
	"log/slog"

	"tipflow/internal/logging"
	"tipflow/internal/queue"
	"tipflow/internal/services"
)

func (m *Manager) runLogger(ctx context.Context, workerLogger *slog.Logger) *slog.Logger {
	base := workerLogger
	if base == nil {
		base = m.logger
	}
	return logging.WithContext(ctx, base)
}

func withRunContext(ctx context.Context, run *queue.Run, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if run != nil {
		ctx = services.WithRunID(ctx, run.ID)
		ctx = services.WithWorkflow(ctx, run.Workflow)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}
