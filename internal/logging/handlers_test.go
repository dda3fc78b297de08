package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestTeeCollapsesNilSinks(t *testing.T) {
	if _, ok := tee(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every sink is nil")
	}
	single := slog.NewJSONHandler(&bytes.Buffer{}, nil)
	if got := tee(nil, single); got != single {
		t.Fatalf("expected lone sink to be returned as is, got %T", got)
	}
}

func TestTeeAppliesEachSinkLevel(t *testing.T) {
	var console, file bytes.Buffer
	h := tee(
		slog.NewJSONHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h).With(FieldRunID, "r1")
	logger.Debug("step checkpoint read")
	logger.Info("run started")

	if strings.Contains(console.String(), "step checkpoint read") {
		t.Fatalf("info sink received debug record: %q", console.String())
	}
	if !strings.Contains(file.String(), "step checkpoint read") || !strings.Contains(file.String(), "run started") {
		t.Fatalf("debug sink missing records: %q", file.String())
	}
	if !strings.Contains(console.String(), `"run_id":"r1"`) {
		t.Fatalf("expected attrs on every sink: %q", console.String())
	}
}

func TestJSONHandlerRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, false))
	logger.Info("vendor configured",
		String("mux_token_secret", "s3cr3t"),
		String("Authorization", "Bearer abc"),
		String("mux_token_id", "id-1"),
		String("tip_id", "tip1"),
	)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	for _, key := range []string{"mux_token_secret", "Authorization", "mux_token_id"} {
		if record[key] != redactedValue {
			t.Fatalf("expected %s redacted, got %v", key, record[key])
		}
	}
	if record["tip_id"] != "tip1" {
		t.Fatalf("unexpected tip_id %v", record["tip_id"])
	}
}

func TestWithLevelOverrideReplacesExistingFloor(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	quiet := WithLevelOverride(base, slog.LevelWarn).With(FieldStep, "create the mux asset")
	loud := WithLevelOverride(quiet, slog.LevelDebug)

	quiet.Info("hidden")
	loud.Debug("visible")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("warn floor leaked info record: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "visible") || !strings.Contains(buf.String(), `"step":"create the mux asset"`) {
		t.Fatalf("replacement floor lost record or attrs: %q", buf.String())
	}
	if !loud.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug enabled after override")
	}
}
