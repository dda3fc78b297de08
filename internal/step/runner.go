package step

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tipflow/internal/config"
	"tipflow/internal/logging"
	"tipflow/internal/queue"
)

// Log is the checkpoint store consulted by the runner. *queue.Store
// satisfies it.
type Log interface {
	Step(ctx context.Context, runID, name string) (*queue.Step, error)
	BeginStep(ctx context.Context, runID, name string) (int, error)
	CompleteStep(ctx context.Context, runID, name, resultJSON string) (bool, error)
	FailStep(ctx context.Context, runID, name, message string) error
}

// Outcome labels how a step ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeReplayed  Outcome = "replayed"
	OutcomeFailed    Outcome = "failed"
	OutcomeFired     Outcome = "fired"
	OutcomeDropped   Outcome = "dropped"
)

// Observer receives one callback per finished step.
type Observer interface {
	StepFinished(workflow, name string, outcome Outcome, attempts int, elapsed time.Duration)
}

// Runner executes the steps of one run attempt.
type Runner struct {
	log          Log
	runID        string
	workflow     string
	retry        config.StepRetry
	logger       *slog.Logger
	levels       map[string]string
	observer     Observer
	fireTimeout  time.Duration
	inflight     sync.WaitGroup
	mu           sync.Mutex
	fireFailures []error
}

// Option customises a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for step lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRetry sets the retry budget applied to every Do step.
func WithRetry(policy config.StepRetry) Option {
	return func(r *Runner) {
		r.retry = policy
	}
}

// WithStepLevels applies per-step log level overrides keyed by step name.
func WithStepLevels(levels map[string]string) Option {
	return func(r *Runner) {
		r.levels = levels
	}
}

// WithObserver registers a metrics observer.
func WithObserver(observer Observer) Option {
	return func(r *Runner) {
		r.observer = observer
	}
}

// WithWorkflow labels emitted metrics with the workflow name.
func WithWorkflow(name string) Option {
	return func(r *Runner) {
		r.workflow = name
	}
}

// WithFireTimeout bounds each best-effort task.
func WithFireTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		r.fireTimeout = timeout
	}
}

// New builds a runner for runID backed by log.
func New(log Log, runID string, opts ...Option) *Runner {
	r := &Runner{
		log:         log,
		runID:       runID,
		logger:      logging.NewNop(),
		fireTimeout: 10 * time.Second,
		retry: config.StepRetry{
			MaxAttempts:     1,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.retry.MaxAttempts == 0 {
		r.retry.MaxAttempts = 1
	}
	return r
}

// RunID returns the run the runner checkpoints against.
func (r *Runner) RunID() string {
	return r.runID
}

// Wait blocks until every in-flight best-effort task has returned.
func (r *Runner) Wait() {
	r.inflight.Wait()
}

// FireErrors returns the errors swallowed from best-effort tasks so far.
func (r *Runner) FireErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.fireFailures...)
}

func (r *Runner) stepLogger(ctx context.Context, name string) *slog.Logger {
	return logging.ForStep(logging.WithContext(ctx, r.logger), name, r.levels)
}

func (r *Runner) observe(name string, outcome Outcome, attempts int, started time.Time) {
	if r.observer == nil {
		return
	}
	r.observer.StepFinished(r.workflow, name, outcome, attempts, time.Since(started))
}

func (r *Runner) recordFireFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fireFailures = append(r.fireFailures, err)
}
