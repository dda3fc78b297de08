package services

import "context"

// ctxKey values are unexported so only this package can populate them.
type ctxKey uint8

const (
	keyRunID ctxKey = iota
	keyStep
	keyWorkflow
	keyRequestID
)

func withValue(ctx context.Context, key ctxKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func lookup(ctx context.Context, key ctxKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithRunID tags ctx with the id of the run being executed.
func WithRunID(ctx context.Context, id string) context.Context { return withValue(ctx, keyRunID, id) }

func RunIDFromContext(ctx context.Context) (string, bool) { return lookup(ctx, keyRunID) }

// WithStep tags ctx with the durable step currently running.
func WithStep(ctx context.Context, name string) context.Context { return withValue(ctx, keyStep, name) }

func StepFromContext(ctx context.Context) (string, bool) { return lookup(ctx, keyStep) }

func WithWorkflow(ctx context.Context, name string) context.Context {
	return withValue(ctx, keyWorkflow, name)
}

func WorkflowFromContext(ctx context.Context) (string, bool) { return lookup(ctx, keyWorkflow) }

// WithRequestID tags ctx with the event id or HTTP request id that caused
// the work, echoed into logs as the correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, keyRequestID, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return lookup(ctx, keyRequestID) }
