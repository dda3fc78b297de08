package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tipflow/internal/logging"
	"tipflow/internal/queue"
	"tipflow/internal/services"
)

func (m *Manager) handleRunFailure(ctx context.Context, logger *slog.Logger, run *queue.Run, runErr error) {
	message := classifyRunFailure(run.Workflow, runErr)
	details := services.Details(runErr)

	now := time.Now().UTC()
	run.Status = queue.StatusFailed
	run.ErrorMessage = message
	run.ErrorKind = details.Kind
	run.FinishedAt = &now
	run.LastHeartbeat = nil

	logger.Error("run failed",
		logging.String("error_message", message),
		logging.String("error_kind", details.Kind),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Int("attempt", run.Attempts),
		logging.Error(runErr),
		logging.String(logging.FieldEventType, "run_failure"),
	)

	m.setLastError(runErr)
	m.setLastRun(run)

	persistCtx := context.WithoutCancel(ctx)
	if err := m.store.Update(persistCtx, run); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("could not persist run failure during shutdown")
		} else {
			logger.Error("failed to persist run failure",
				logging.Error(err),
				logging.String(logging.FieldEventType, "run_persist_failed"),
				logging.String(logging.FieldErrorHint, "check run store access"),
			)
		}
	}

	m.notifyRunError(persistCtx, logger, run, message)
}

func classifyRunFailure(workflow string, runErr error) string {
	if runErr == nil {
		return failureMessage(workflow, "failed without error detail")
	}
	message := strings.TrimSpace(services.Details(runErr).Message)
	if message == "" {
		message = failureMessage(workflow, "failed")
	}
	return message
}

func failureMessage(workflow, defaultMsg string) string {
	if workflow != "" {
		return fmt.Sprintf("%s %s", workflow, defaultMsg)
	}
	return fmt.Sprintf("run %s", defaultMsg)
}
