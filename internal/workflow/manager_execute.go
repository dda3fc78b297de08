package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tipflow/internal/logging"
	"tipflow/internal/queue"
	"tipflow/internal/services"
	"tipflow/internal/stage"
	"tipflow/internal/step"
)

func (m *Manager) processRun(ctx context.Context, workerLogger *slog.Logger, run *queue.Run) error {
	runCtx := withRunContext(ctx, run, uuid.NewString())
	logger := m.runLogger(runCtx, workerLogger)
	m.setLastRun(run)

	handler, ok := m.handlerFor(run.Workflow)
	if !ok {
		err := services.Wrap(services.ErrConfiguration, "workflow", "dispatch",
			fmt.Sprintf("no handler registered for workflow %q", run.Workflow), nil)
		m.handleRunFailure(runCtx, logger, run, err)
		return err
	}

	started := time.Now()
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("attempt", run.Attempts),
	)

	runner := m.newRunner(logger, run)
	output, execErr := m.executeWithHeartbeat(runCtx, handler, run, runner)
	runner.Wait()

	if execErr != nil {
		if errors.Is(execErr, context.Canceled) && ctx.Err() != nil {
			logger.Info("run interrupted by shutdown; it resumes from its step log on restart",
				logging.String(logging.FieldEventType, "run_interrupted"),
			)
			return execErr
		}
		m.handleRunFailure(runCtx, logger, run, execErr)
		m.metrics.RunFinished(run.Workflow, string(queue.StatusFailed), time.Since(started))
		_, _ = m.refreshQueueDepth(context.WithoutCancel(runCtx))
		return execErr
	}

	if err := m.completeRun(runCtx, logger, run, output); err != nil {
		m.setLastError(err)
		return err
	}
	m.metrics.RunFinished(run.Workflow, string(queue.StatusCompleted), time.Since(started))
	_, _ = m.refreshQueueDepth(context.WithoutCancel(runCtx))
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Duration("run_duration", time.Since(started)),
	)
	return nil
}

func (m *Manager) newRunner(logger *slog.Logger, run *queue.Run) *step.Runner {
	opts := []step.Option{
		step.WithLogger(logger),
		step.WithRetry(m.cfg.StepRetryPolicy()),
		step.WithStepLevels(m.cfg.Logging.StepOverrides),
		step.WithWorkflow(run.Workflow),
	}
	if m.metrics != nil {
		opts = append(opts, step.WithObserver(m.metrics))
	}
	if timeout := time.Duration(m.cfg.Workflow.AnnounceWaitTimeout) * time.Second; timeout > 0 {
		opts = append(opts, step.WithFireTimeout(timeout))
	}
	return step.New(m.store, run.ID, opts...)
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, run *queue.Run, runner *step.Runner) (any, error) {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, run.ID)

	output, execErr := handler.Execute(ctx, run, runner)
	hbCancel()
	hbWG.Wait()
	return output, execErr
}

// completeRun persists output even when shutdown raced the final step so
// finished work is never repeated.
func (m *Manager) completeRun(ctx context.Context, logger *slog.Logger, run *queue.Run, output any) error {
	encoded, err := encodeOutput(output)
	if err != nil {
		wrapped := services.Wrap(services.ErrValidation, "workflow", "encode output", "run output is not serialisable", err)
		m.handleRunFailure(ctx, logger, run, wrapped)
		return wrapped
	}

	now := time.Now().UTC()
	run.Status = queue.StatusCompleted
	run.OutputJSON = encoded
	run.ErrorMessage = ""
	run.ErrorKind = ""
	run.FinishedAt = &now
	run.LastHeartbeat = nil
	if err := m.store.Update(context.WithoutCancel(ctx), run); err != nil {
		wrapped := fmt.Errorf("persist run result: %w", err)
		logger.Error("failed to persist run result",
			logging.Error(wrapped),
			logging.String(logging.FieldEventType, "run_persist_failed"),
			logging.String(logging.FieldErrorHint, "check run store access"),
			logging.String(logging.FieldImpact, "run will be reclaimed and resumed from its step log"),
		)
		return wrapped
	}
	m.setLastRun(run)
	m.notifyRunCompleted(ctx, logger, run, output)
	return nil
}

func encodeOutput(output any) (string, error) {
	if output == nil {
		return "", nil
	}
	data, err := json.Marshal(output)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
