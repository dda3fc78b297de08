package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tipflow/internal/config"
	"tipflow/internal/logging"
	"tipflow/internal/metrics"
	"tipflow/internal/notifications"
	"tipflow/internal/queue"
	"tipflow/internal/stage"
)

// Manager coordinates run processing using registered workflow handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	metrics      *metrics.Metrics
	pollInterval time.Duration
	workers      int

	heartbeat *HeartbeatMonitor

	handlers map[string]stage.Handler
	order    []string

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastRun *queue.Run
}

// NewManager constructs a run manager. A nil notifier disables notifications
// and nil metrics disables instrumentation.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		metrics:      m,
		pollInterval: cfg.PollInterval(),
		workers:      workers,
		heartbeat:    NewHeartbeatMonitor(store, logger, cfg.HeartbeatInterval(), cfg.HeartbeatTimeout()),
		handlers:     make(map[string]stage.Handler),
	}
}

// Register adds a handler for its workflow. It must be called before Start.
func (m *Manager) Register(handler stage.Handler) error {
	if handler == nil {
		return fmt.Errorf("register workflow: handler is nil")
	}
	name := strings.TrimSpace(handler.Workflow())
	if name == "" {
		return fmt.Errorf("register workflow: handler has no workflow name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("register workflow %q: manager already running", name)
	}
	if _, exists := m.handlers[name]; exists {
		return fmt.Errorf("register workflow %q: already registered", name)
	}
	if aware, ok := handler.(stage.LoggerAware); ok {
		aware.SetLogger(m.logger.With(logging.String(logging.FieldComponent, name)))
	}
	m.handlers[name] = handler
	m.order = append(m.order, name)
	return nil
}

// Workflows lists registered workflow names in registration order.
func (m *Manager) Workflows() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) handlerFor(workflow string) (stage.Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handler, ok := m.handlers[workflow]
	return handler, ok
}
