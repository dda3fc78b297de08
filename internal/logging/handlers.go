package logging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// NoopHandler drops every record. NewNop and nil-logger fallbacks use it.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h NoopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h NoopHandler) WithGroup(string) slog.Handler           { return h }

// teeHandler copies each record to the console sink and the log file. Each
// sink applies its own level.
type teeHandler []slog.Handler

func tee(sinks ...slog.Handler) slog.Handler {
	var live teeHandler
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return NoopHandler{}
	case 1:
		return live[0]
	}
	return live
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range t {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, s := range t {
		if s.Enabled(ctx, record.Level) {
			// Handlers may retain attrs, so each sink gets its own copy.
			if err := s.Handle(ctx, record.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	out := make(teeHandler, len(t))
	for i, s := range t {
		out[i] = fn(s)
	}
	return out
}

// floorHandler drops records below min before they reach next. The sinks
// underneath run at the most verbose level any step override asks for.
type floorHandler struct {
	next slog.Handler
	min  slog.Level
}

func (f floorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= f.min && f.next.Enabled(ctx, level)
}

func (f floorHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < f.min {
		return nil
	}
	return f.next.Handle(ctx, record)
}

func (f floorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return floorHandler{next: f.next.WithAttrs(attrs), min: f.min}
}

func (f floorHandler) WithGroup(name string) slog.Handler {
	return floorHandler{next: f.next.WithGroup(name), min: f.min}
}

// WithLevelOverride returns a logger that drops records below level. A
// logger that already carries an override has it replaced rather than
// stacked, so a step can lower the floor set for the root logger.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	next := logger.Handler()
	if f, ok := next.(floorHandler); ok {
		next = f.next
	}
	return slog.New(floorHandler{next: next, min: level})
}

// ForStep applies the override configured for step, matched
// case-insensitively, or returns logger unchanged.
func ForStep(logger *slog.Logger, step string, overrides map[string]string) *slog.Logger {
	value, ok := overrides[strings.ToLower(strings.TrimSpace(step))]
	if !ok {
		return logger
	}
	return WithLevelOverride(logger, parseLevel(value))
}
