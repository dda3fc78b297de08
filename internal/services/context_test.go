package services_test

import (
	"context"
	"testing"

	"tipflow/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithStep(ctx, "create the mux asset")
	ctx = services.WithWorkflow(ctx, "tip-video-uploaded")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if step, ok := services.StepFromContext(ctx); !ok || step != "create the mux asset" {
		t.Fatalf("unexpected step: %v %v", step, ok)
	}
	if wf, ok := services.WorkflowFromContext(ctx); !ok || wf != "tip-video-uploaded" {
		t.Fatalf("unexpected workflow: %v %v", wf, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStepBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStep(ctx, "")
	if _, ok := services.StepFromContext(ctx); ok {
		t.Fatal("expected no step value")
	}
}
