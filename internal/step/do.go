package step

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"tipflow/internal/logging"
	"tipflow/internal/services"
)

// errAlreadyCompleted signals that another attempt committed the step while
// this one was starting.
var errAlreadyCompleted = errors.New("step already completed")

// Do runs fn as the durable step name. A committed checkpoint short-circuits
// fn and returns the stored value. T must round-trip through encoding/json.
func Do[T any](ctx context.Context, r *Runner, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil || r.log == nil {
		return zero, fmt.Errorf("step %q: runner unavailable", name)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return zero, errors.New("step name is required")
	}

	stepCtx := services.WithStep(ctx, name)
	logger := r.stepLogger(stepCtx, name)
	started := time.Now()

	if value, ok, err := replay[T](stepCtx, r, name); err != nil {
		return zero, err
	} else if ok {
		logger.Debug("step replayed from checkpoint", logging.String(logging.FieldEventType, "step_replay"))
		r.observe(name, OutcomeReplayed, 0, started)
		return value, nil
	}

	logger.Debug("step started", logging.String(logging.FieldEventType, "step_start"))

	attempts := 0
	operation := func() (T, error) {
		attempt, err := r.log.BeginStep(stepCtx, r.runID, name)
		if err != nil {
			return zero, fmt.Errorf("record step attempt: %w", err)
		}
		if attempt == 0 {
			return zero, backoff.Permanent(errAlreadyCompleted)
		}
		attempts = attempt
		value, err := fn(stepCtx)
		if err != nil {
			if services.IsPermanent(err) {
				return zero, backoff.Permanent(err)
			}
			return zero, err
		}
		return value, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.retry.InitialInterval
	if r.retry.MaxInterval > 0 {
		bo.MaxInterval = r.retry.MaxInterval
	}
	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(r.retry.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logging.WarnWithContext(logger, "step attempt failed; retrying", "step_retry",
				logging.Int("attempt", attempts),
				logging.Duration("retry_in", wait),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Details(err).Hint),
				logging.String(logging.FieldImpact, "step will be retried"),
			)
		}),
	}
	if r.retry.MaxElapsed > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(r.retry.MaxElapsed))
	}

	value, err := backoff.Retry(stepCtx, operation, retryOpts...)
	if errors.Is(err, errAlreadyCompleted) {
		stored, ok, replayErr := replay[T](stepCtx, r, name)
		if replayErr != nil {
			return zero, replayErr
		}
		if ok {
			r.observe(name, OutcomeReplayed, attempts, started)
			return stored, nil
		}
		err = fmt.Errorf("checkpoint for %q disappeared", name)
	}
	if err != nil {
		r.fail(stepCtx, logger, name, attempts, started, err)
		return zero, fmt.Errorf("step %q: %w", name, err)
	}

	payload, err := json.Marshal(value)
	if err != nil {
		r.fail(stepCtx, logger, name, attempts, started, err)
		return zero, fmt.Errorf("step %q: encode result: %w", name, err)
	}
	stored, err := r.log.CompleteStep(stepCtx, r.runID, name, string(payload))
	if err != nil {
		return zero, fmt.Errorf("step %q: commit checkpoint: %w", name, err)
	}
	if !stored {
		// Another attempt committed first; its value is authoritative.
		existing, ok, replayErr := replay[T](stepCtx, r, name)
		if replayErr != nil {
			return zero, replayErr
		}
		if ok {
			value = existing
		}
	}

	logger.Info(
		"step completed",
		logging.String(logging.FieldEventType, "step_complete"),
		logging.Int("attempts", attempts),
		logging.Duration("duration", time.Since(started)),
	)
	r.observe(name, OutcomeCompleted, attempts, started)
	return value, nil
}

func replay[T any](ctx context.Context, r *Runner, name string) (T, bool, error) {
	var value T
	existing, err := r.log.Step(ctx, r.runID, name)
	if err != nil {
		return value, false, fmt.Errorf("step %q: load checkpoint: %w", name, err)
	}
	if existing == nil || !existing.Completed() {
		return value, false, nil
	}
	if strings.TrimSpace(existing.ResultJSON) == "" {
		return value, true, nil
	}
	if err := json.Unmarshal([]byte(existing.ResultJSON), &value); err != nil {
		return value, false, fmt.Errorf("step %q: decode checkpoint: %w", name, err)
	}
	return value, true, nil
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, name string, attempts int, started time.Time, stepErr error) {
	details := services.Details(stepErr)
	if err := r.log.FailStep(context.WithoutCancel(ctx), r.runID, name, details.Message); err != nil {
		logger.Error("failed to persist step failure", logging.Error(err))
	}
	logging.ErrorWithContext(logger, "step failed", "step_failure",
		logging.Int("attempts", attempts),
		logging.String("error_kind", details.Kind),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Error(stepErr),
	)
	r.observe(name, OutcomeFailed, attempts, started)
}
