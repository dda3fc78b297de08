package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tipflow/internal/contentstore"
	"tipflow/internal/deepgram"
	"tipflow/internal/mux"
	"tipflow/internal/notifications"
	"tipflow/internal/services"
	"tipflow/internal/step"
)

// Step names. They key the step log, so renaming one breaks resume for runs
// already in flight.
const (
	StepAnnounce           = "announce video resource created"
	StepFetchTip           = "get the tip from the content store"
	StepFetchVideoResource = "get the video resource from the content store"
	StepCreateAsset        = "create the mux asset"
	StepPatchVideoResource = "patch the video resource with the mux asset"
	StepPatchTip           = "update the tip resources"
	StepOrderTranscript    = "order the transcript"
)

// StepNames lists the workflow steps in execution order.
func StepNames() []string {
	return []string{
		StepAnnounce,
		StepFetchTip,
		StepFetchVideoResource,
		StepCreateAsset,
		StepPatchVideoResource,
		StepPatchTip,
		StepOrderTranscript,
	}
}

// ContentStore is the document access the workflow needs.
type ContentStore interface {
	GetTip(ctx context.Context, id string) (*contentstore.Tip, error)
	GetVideoResource(ctx context.Context, id string) (*contentstore.VideoResource, error)
	PatchVideoResource(ctx context.Context, id string, asset contentstore.MuxAsset) (*contentstore.VideoResource, error)
	SetTipResourcesIfMissing(ctx context.Context, tipID string, refs []contentstore.Reference) (*contentstore.MutationResult, error)
}

// VideoHost creates hosted assets.
type VideoHost interface {
	CreateAsset(ctx context.Context, settings mux.AssetSettings) (*mux.Asset, error)
}

// Transcriber orders transcripts.
type Transcriber interface {
	OrderTranscript(ctx context.Context, order deepgram.Order) (*deepgram.Acknowledgement, error)
}

// TipLookup is the outcome of the tip fetch: Found is false when the
// document does not exist.
type TipLookup struct {
	Found bool              `json:"found"`
	Tip   *contentstore.Tip `json:"tip,omitempty"`
}

// Result is the aggregate output of one run.
type Result struct {
	Data                 Event                       `json:"data"`
	UpdatedVideoResource *contentstore.VideoResource `json:"updatedVideoResource"`
	MuxAsset             *mux.Asset                  `json:"muxAsset"`
	Deepgram             *deepgram.Acknowledgement   `json:"deepgram"`
}

// Summary implements stage.Summarizer.
func (r Result) Summary() map[string]any {
	summary := map[string]any{
		"fileName":        r.Data.FileName,
		"videoResourceId": r.Data.VideoResourceID,
	}
	if r.MuxAsset != nil {
		summary["muxAssetId"] = r.MuxAsset.ID
	}
	if r.Deepgram != nil {
		summary["transcriptRequestId"] = r.Deepgram.RequestID
	}
	return summary
}

// Coordinator runs the ingestion steps against its collaborators.
type Coordinator struct {
	content        ContentStore
	host           VideoHost
	transcriber    Transcriber
	notifier       notifications.Service
	playbackPolicy string
	newKey         func() string
}

// CoordinatorOption customises a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPlaybackPolicy sets the playback policy requested for new assets.
func WithPlaybackPolicy(policy string) CoordinatorOption {
	return func(c *Coordinator) {
		c.playbackPolicy = strings.TrimSpace(policy)
	}
}

// WithKeyGenerator replaces the generator for reference array keys.
func WithKeyGenerator(fn func() string) CoordinatorOption {
	return func(c *Coordinator) {
		if fn != nil {
			c.newKey = fn
		}
	}
}

// NewCoordinator wires the collaborators. A nil notifier disables the
// announcement.
func NewCoordinator(content ContentStore, host VideoHost, transcriber Transcriber, notifier notifications.Service, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		content:        content,
		host:           host,
		transcriber:    transcriber,
		notifier:       notifier,
		playbackPolicy: mux.PolicyPublic,
		newKey:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the workflow for event. Completed steps recorded by runner are
// replayed from the step log instead of being executed again.
func (c *Coordinator) Run(ctx context.Context, runner *step.Runner, event Event) (*Result, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if c.content == nil || c.host == nil || c.transcriber == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "run", "workflow collaborators are not configured", nil)
	}

	step.Fire(ctx, runner, StepAnnounce, func(ctx context.Context) error {
		if c.notifier == nil {
			return nil
		}
		return c.notifier.Publish(ctx, notifications.EventVideoResourceCreated, notifications.Payload{
			"fileName":        event.FileName,
			"videoResourceId": event.VideoResourceID,
		})
	})

	var lookup TipLookup
	if event.HasTip() {
		var err error
		lookup, err = step.Do(ctx, runner, StepFetchTip, func(ctx context.Context) (TipLookup, error) {
			tip, err := c.content.GetTip(ctx, event.TipID)
			if err != nil {
				return TipLookup{}, err
			}
			return TipLookup{Found: tip != nil, Tip: tip}, nil
		})
		if err != nil {
			return nil, err
		}
	}

	video, err := step.Do(ctx, runner, StepFetchVideoResource, func(ctx context.Context) (*contentstore.VideoResource, error) {
		doc, err := c.content.GetVideoResource(ctx, event.VideoResourceID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, services.Wrap(services.ErrNotFound, "ingest", "fetch video resource",
				fmt.Sprintf("video resource %s does not exist", event.VideoResourceID), nil)
		}
		if strings.TrimSpace(doc.OriginalVideoURL) == "" {
			return nil, services.Wrap(services.ErrValidation, "ingest", "fetch video resource",
				fmt.Sprintf("video resource %s has no originalVideoUrl", doc.ID), nil)
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}

	asset, err := step.Do(ctx, runner, StepCreateAsset, func(ctx context.Context) (*mux.Asset, error) {
		fileName := video.FileName
		if fileName == "" {
			fileName = event.FileName
		}
		return c.host.CreateAsset(ctx, mux.NewAssetSettings(video.OriginalVideoURL, fileName, c.playbackPolicy))
	})
	if err != nil {
		return nil, err
	}

	updated, err := step.Do(ctx, runner, StepPatchVideoResource, func(ctx context.Context) (*contentstore.VideoResource, error) {
		return c.content.PatchVideoResource(ctx, video.ID, contentstore.MuxAsset{
			MuxAssetID:    asset.ID,
			MuxPlaybackID: asset.PublicPlaybackID(),
		})
	})
	if err != nil {
		return nil, err
	}

	if lookup.Found && lookup.Tip != nil {
		tipID := lookup.Tip.ID
		if _, err := step.Do(ctx, runner, StepPatchTip, func(ctx context.Context) (*contentstore.MutationResult, error) {
			refs := []contentstore.Reference{contentstore.NewReference(c.newKey(), updated.ID)}
			return c.content.SetTipResourcesIfMissing(ctx, tipID, refs)
		}); err != nil {
			return nil, err
		}
	}

	transcript, err := step.Do(ctx, runner, StepOrderTranscript, func(ctx context.Context) (*deepgram.Acknowledgement, error) {
		return c.transcriber.OrderTranscript(ctx, deepgram.Order{
			ModuleSlug:      event.TipID,
			MediaURL:        updated.OriginalVideoURL,
			VideoResourceID: updated.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:                 event,
		UpdatedVideoResource: updated,
		MuxAsset:             asset,
		Deepgram:             transcript,
	}, nil
}
