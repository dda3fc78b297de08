package services_test

import (
	"errors"
	"strings"
	"testing"

	"tipflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalService, "mux", "create asset", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"mux", "create asset", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err)
	}
}

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrValidation, "ingest", "event", "missing id", nil), true},
		{services.Wrap(services.ErrConfiguration, "mux", "auth", "rejected", nil), true},
		{services.Wrap(services.ErrNotFound, "sanity", "get", "absent", nil), false},
		{services.Wrap(services.ErrTransient, "deepgram", "order", "503", nil), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := services.IsPermanent(tc.err); got != tc.want {
			t.Fatalf("IsPermanent(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestDetailsClassifiesMarkers(t *testing.T) {
	details := services.Details(services.Wrap(services.ErrNotFound, "sanity", "get video resource", "missing", nil))
	if details.Kind != "not_found" {
		t.Fatalf("expected not_found kind, got %q", details.Kind)
	}
	if details.Hint == "" || details.Message == "" {
		t.Fatalf("expected hint and message, got %+v", details)
	}
	if got := services.Details(errors.New("plain")); got.Kind != "unknown" {
		t.Fatalf("expected unknown kind, got %q", got.Kind)
	}
	if got := services.Details(nil); got != (services.ErrorDetails{}) {
		t.Fatalf("expected zero details for nil, got %+v", got)
	}
}
