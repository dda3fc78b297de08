package logging

import (
	"context"
	"log/slog"

	"tipflow/internal/services"
)

// Field names shared by every component.
const (
	FieldComponent     = "component"
	FieldRunID         = "run_id"
	FieldStep          = "step"
	FieldWorkflow      = "workflow"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering, e.g. step_retry.
	FieldEventType = "event_type"
	// FieldErrorHint is what the operator should check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the consequence of a warning for the run.
	FieldImpact = "impact"
)

var contextFields = []struct {
	key    string
	lookup func(context.Context) (string, bool)
}{
	{FieldRunID, services.RunIDFromContext},
	{FieldStep, services.StepFromContext},
	{FieldWorkflow, services.WorkflowFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// ContextFields returns the run, step, workflow, and correlation attributes
// present on ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	for _, f := range contextFields {
		if v, ok := f.lookup(ctx); ok {
			attrs = append(attrs, slog.String(f.key, v))
		}
	}
	return attrs
}

// WithContext tags logger with ContextFields(ctx).
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	attrs := ContextFields(ctx)
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(Args(attrs...)...)
}
