package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tipflow/internal/logging"
	"tipflow/internal/queue"
	"tipflow/internal/stage"
)

// Start begins background processing with the configured number of workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.order) == 0 {
		m.mu.Unlock()
		return errors.New("no workflows registered")
	}
	workflows := append([]string(nil), m.order...)
	handlers := make([]stage.Handler, 0, len(workflows))
	for _, name := range workflows {
		handlers = append(handlers, m.handlers[name])
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	m.mu.Unlock()

	m.logger.Info("workflow manager started",
		logging.Int("workers", m.workers),
		logging.Any("workflows", workflows),
		logging.String(logging.FieldEventType, "manager_start"),
	)
	for _, handler := range handlers {
		if health := handler.HealthCheck(runCtx); !health.Ready {
			m.logger.Warn("workflow registered but not ready",
				logging.String(logging.FieldWorkflow, handler.Workflow()),
				logging.String("health", health.String()),
				logging.String(logging.FieldEventType, "workflow_not_ready"),
				logging.String(logging.FieldImpact, "runs of this workflow are expected to fail"),
			)
		}
	}
	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx, i, workflows)
	}
	return nil
}

// Stop terminates background processing and waits for every worker to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow manager stopped", logging.String(logging.FieldEventType, "manager_stop"))
}

func (m *Manager) runWorker(ctx context.Context, index int, workflows []string) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldComponent, fmt.Sprintf("workflow-worker-%d", index)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// One reclaimer is enough; every worker shares the same store.
		if index == 0 {
			if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("reclaim stale runs failed; stuck runs may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check run store access"),
				)
			}
		}

		run, err := m.store.ClaimNext(ctx, workflows...)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if run == nil {
			m.waitForRunOrShutdown(ctx)
			continue
		}

		if err := m.processRun(ctx, logger, run); err != nil && errors.Is(err, context.Canceled) {
			return
		}
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next run",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
		logging.String(logging.FieldErrorHint, "check run store access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.cfg.ErrorRetryDelay()):
	}
}

func (m *Manager) waitForRunOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) refreshQueueDepth(ctx context.Context) (map[queue.Status]int, error) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(stats))
	for _, status := range queue.AllStatuses() {
		counts[string(status)] = stats[status]
	}
	m.metrics.SetQueueDepth(counts)
	return stats, nil
}
