package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"tipflow/internal/broker"
	"tipflow/internal/config"
	"tipflow/internal/ingest"
	"tipflow/internal/logging"
	"tipflow/internal/metrics"
	"tipflow/internal/notifications"
	"tipflow/internal/preflight"
	"tipflow/internal/queue"
	"tipflow/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	metrics  *metrics.Metrics
	notifier notifications.Service
	consumer *broker.Consumer

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	bg      sync.WaitGroup
}

// Option customises a Daemon.
type Option func(*Daemon)

// WithMetrics exposes m on the API and records intake counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Daemon) { d.metrics = m }
}

// WithNotifier sets the service used by TestNotification.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) { d.notifier = n }
}

// WithConsumer starts c alongside the workflow manager.
func WithConsumer(c *broker.Consumer) Option {
	return func(d *Daemon) { d.consumer = c }
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Workflow      workflow.StatusSummary
	DatabasePath  string
	LockFilePath  string
	BrokerEnabled bool
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}
	return d, nil
}

// Start runs preflight checks, acquires the daemon lock, recovers orphaned
// runs, and launches workers, intake, and the API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.runPreflight(ctx); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tipflow daemon instance is already running")
	}

	reset, err := d.store.ResetRunning(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover running runs: %w", err)
	}
	if reset > 0 {
		d.logger.Info("returned interrupted runs to pending",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "runs_recovered"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	api, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}
	if err := api.start(runCtx); err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}
	d.api = api

	if d.consumer != nil {
		d.bg.Add(1)
		go func() {
			defer d.bg.Done()
			if err := d.consumer.Run(runCtx); err != nil {
				logging.ErrorWithContext(d.logger, "broker consumer stopped", "broker_stopped",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the [broker] config section"),
				)
			}
		}()
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("tipflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.Bool("broker", d.consumer != nil),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

func (d *Daemon) runPreflight(ctx context.Context) error {
	results := preflight.RunAll(ctx, d.cfg)
	for _, r := range results {
		if r.Passed {
			d.logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		d.logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"),
		)
	}
	return preflight.Failures(results)
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.workflow.Stop()
	d.bg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("tipflow daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// APIAddress returns the bound API address, or "" before Start.
func (d *Daemon) APIAddress() string {
	if d.api == nil {
		return ""
	}
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Workflow:      d.workflow.Status(ctx),
		DatabasePath:  d.cfg.DatabasePath(),
		LockFilePath:  d.lockPath,
		BrokerEnabled: d.consumer != nil,
	}
}

// SubmitEvent records a named event envelope as a pending run.
func (d *Daemon) SubmitEvent(ctx context.Context, body []byte) (*queue.Run, error) {
	env, event, err := ingest.ParseEnvelope(body)
	if err != nil {
		d.metrics.EventReceived("http", "rejected")
		return nil, err
	}
	run, err := ingest.Enqueue(ctx, d.store, event, strings.TrimSpace(env.ID))
	if err != nil {
		d.metrics.EventReceived("http", "failed")
		return nil, err
	}
	d.metrics.EventReceived("http", "accepted")
	d.logger.Info("event accepted",
		logging.String(logging.FieldRunID, run.ID),
		logging.String("video_resource_id", event.VideoResourceID),
		logging.String(logging.FieldEventType, "event_accepted"),
	)
	return run, nil
}

// ListRuns returns runs filtered by optional statuses.
func (d *Daemon) ListRuns(ctx context.Context, statuses []queue.Status) ([]*queue.Run, error) {
	return d.store.ListRuns(ctx, statuses...)
}

// DescribeRun resolves id (or a unique prefix) and returns the run with its
// step log. A missing run yields (nil, nil, nil).
func (d *Daemon) DescribeRun(ctx context.Context, id string) (*queue.Run, []*queue.Step, error) {
	run, err := d.store.FindRunByPrefix(ctx, id)
	if err != nil || run == nil {
		return nil, nil, err
	}
	steps, err := d.store.Steps(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, steps, nil
}

// RetryRun moves a failed run back to pending, keeping its step log.
func (d *Daemon) RetryRun(ctx context.Context, id string) (int64, error) {
	run, err := d.store.FindRunByPrefix(ctx, id)
	if err != nil || run == nil {
		return 0, err
	}
	return d.store.RetryFailed(ctx, run.ID)
}

// TestNotification publishes a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
