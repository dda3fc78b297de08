package step

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tipflow/internal/logging"
	"tipflow/internal/services"
)

// Fire records the best-effort step name and runs fn on a side goroutine.
// The checkpoint is written before fn starts, so a resumed run never fires
// the same step twice. fn's error is logged and never returned.
func Fire(ctx context.Context, r *Runner, name string, fn func(context.Context) error) {
	if r == nil || r.log == nil || fn == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	stepCtx := services.WithStep(ctx, name)
	logger := r.stepLogger(stepCtx, name)
	started := time.Now()

	existing, err := r.log.Step(stepCtx, r.runID, name)
	if err != nil {
		logging.WarnWithContext(logger, "best-effort step skipped", "step_fire_skipped",
			logging.Error(err),
			logging.String(logging.FieldImpact, "notification not sent"),
		)
		r.observe(name, OutcomeDropped, 0, started)
		return
	}
	if existing != nil && existing.Completed() {
		logger.Debug("best-effort step already fired", logging.String(logging.FieldEventType, "step_replay"))
		r.observe(name, OutcomeReplayed, 0, started)
		return
	}

	stored, err := r.log.CompleteStep(stepCtx, r.runID, name, `{"fired":true}`)
	if err != nil || !stored {
		if err == nil {
			err = errors.New("checkpoint already committed")
		}
		logger.Debug("best-effort step not fired", logging.Error(err))
		r.observe(name, OutcomeDropped, 0, started)
		return
	}

	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(stepCtx), r.fireTimeout)
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				r.swallow(logger, name, started, fmt.Errorf("panic: %v", rec))
			}
		}()
		if err := fn(taskCtx); err != nil {
			r.swallow(logger, name, started, err)
			return
		}
		logger.Debug("best-effort step finished", logging.String(logging.FieldEventType, "step_fire_complete"))
		r.observe(name, OutcomeFired, 1, started)
	}()
}

func (r *Runner) swallow(logger *slog.Logger, name string, started time.Time, err error) {
	r.recordFireFailure(fmt.Errorf("step %q: %w", name, err))
	logging.WarnWithContext(logger, "best-effort step failed", "step_fire_failure",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Details(err).Hint),
		logging.String(logging.FieldImpact, "run continues without this side effect"),
	)
	r.observe(name, OutcomeDropped, 1, started)
}
