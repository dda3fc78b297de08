package workflow

import (
	"context"

	"tipflow/internal/logging"
	"tipflow/internal/queue"
	"tipflow/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running        bool                    `json:"running"`
	Workers        int                     `json:"workers"`
	LastError      string                  `json:"lastError,omitempty"`
	LastRun        *queue.Run              `json:"lastRun,omitempty"`
	QueueStats     map[queue.Status]int    `json:"queueStats"`
	WorkflowHealth map[string]stage.Health `json:"workflowHealth"`
}

// Status returns the latest workflow information and refreshes the queue
// depth gauge.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastRun := m.lastRun
	handlers := make(map[string]stage.Handler, len(m.handlers))
	for name, handler := range m.handlers {
		handlers[name] = handler
	}
	m.mu.RUnlock()

	stats, err := m.refreshQueueDepth(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_stats_failed"),
			logging.String(logging.FieldImpact, "status output omits queue counts"),
		)
	}

	health := make(map[string]stage.Health, len(handlers))
	for name, handler := range handlers {
		health[name] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:        running,
		Workers:        m.workers,
		QueueStats:     stats,
		WorkflowHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastRun != nil {
		copy := *lastRun
		summary.LastRun = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastRun(run *queue.Run) {
	m.mu.Lock()
	if run != nil {
		copy := *run
		m.lastRun = &copy
	} else {
		m.lastRun = nil
	}
	m.mu.Unlock()
}
