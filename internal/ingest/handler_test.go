package ingest_test

import (
	"context"
	"testing"

	"tipflow/internal/ingest"
	"tipflow/internal/notifications"
	"tipflow/internal/step"
	"tipflow/internal/testsupport"
)

func TestHandlerRunsAgainstVendorAPIs(t *testing.T) {
	vendors := testsupport.NewVendors(t)
	vendors.PutDocument(map[string]any{"_id": "tip1", "_type": "tip", "title": "Tip"})
	vendors.PutDocument(map[string]any{
		"_id":              "vr1",
		"_type":            "videoResource",
		"originalVideoUrl": "https://x/a.mp4",
		"fileName":         "a.mp4",
	})
	vendors.SetPlaybackIDs([]map[string]string{{"id": "pb1", "policy": "public"}})
	vendors.FailNext(testsupport.RouteAssets, 1)

	cfg := testsupport.NewConfig(t, testsupport.WithVendorBaseURL(vendors.URL()))
	store := testsupport.MustOpenStore(t, cfg)
	handler, err := ingest.NewHandlerFromConfig(cfg, notifications.NewService(cfg))
	if err != nil {
		t.Fatalf("NewHandlerFromConfig: %v", err)
	}
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected ready handler, got %+v", health)
	}

	run := testsupport.NewRun(t, store, ingest.WorkflowName, `{"tipId":"tip1","videoResourceId":"vr1","fileName":"a.mp4"}`)
	runner := step.New(store, run.ID, step.WithRetry(cfg.StepRetryPolicy()))
	out, err := handler.Execute(context.Background(), run, runner)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	runner.Wait()

	result, ok := out.(*ingest.Result)
	if !ok {
		t.Fatalf("unexpected output type %T", out)
	}
	if result.MuxAsset.ID != "asset-2" {
		t.Fatalf("expected asset from the retried call, got %q", result.MuxAsset.ID)
	}

	video := vendors.Document("vr1")
	if video["state"] != "processing" {
		t.Fatalf("video resource state = %v", video["state"])
	}
	asset, _ := video["muxAsset"].(map[string]any)
	if asset["muxAssetId"] != "asset-2" || asset["muxPlaybackId"] != "pb1" {
		t.Fatalf("unexpected muxAsset %v", asset)
	}

	tip := vendors.Document("tip1")
	resources, _ := tip["resources"].([]any)
	if len(resources) != 1 {
		t.Fatalf("expected one tip resource, got %v", tip["resources"])
	}
	ref, _ := resources[0].(map[string]any)
	if ref["_ref"] != "vr1" || ref["_type"] != "reference" || ref["_key"] == "" {
		t.Fatalf("unexpected reference %v", ref)
	}
	if vendors.Calls(testsupport.RouteListen) != 1 {
		t.Fatalf("expected one transcript order, got %d", vendors.Calls(testsupport.RouteListen))
	}
}

func TestHandlerRejectsMalformedEvent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler, err := ingest.NewHandlerFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewHandlerFromConfig: %v", err)
	}
	run := testsupport.NewRun(t, store, ingest.WorkflowName, `{"fileName":"a.mp4"}`)
	if _, err := handler.Execute(context.Background(), run, step.New(store, run.ID)); err == nil {
		t.Fatal("expected error for event without videoResourceId")
	}
}
