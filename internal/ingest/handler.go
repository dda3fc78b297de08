package ingest

import (
	"context"
	"log/slog"

	"tipflow/internal/config"
	"tipflow/internal/contentstore"
	"tipflow/internal/deepgram"
	"tipflow/internal/logging"
	"tipflow/internal/mux"
	"tipflow/internal/notifications"
	"tipflow/internal/queue"
	"tipflow/internal/services"
	"tipflow/internal/stage"
	"tipflow/internal/step"
)

// Handler adapts the Coordinator to the run manager's stage contract.
type Handler struct {
	coordinator *Coordinator
	cfg         *config.Config
	logger      *slog.Logger
}

// NewHandler wraps an existing coordinator.
func NewHandler(coordinator *Coordinator, cfg *config.Config) *Handler {
	return &Handler{coordinator: coordinator, cfg: cfg, logger: logging.NewNop()}
}

// NewHandlerFromConfig builds the vendor clients described by cfg.
func NewHandlerFromConfig(cfg *config.Config, notifier notifications.Service) (*Handler, error) {
	content, err := contentstore.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	host, err := mux.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	transcriber, err := deepgram.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	coordinator := NewCoordinator(content, host, transcriber, notifier, WithPlaybackPolicy(host.PlaybackPolicy()))
	return NewHandler(coordinator, cfg), nil
}

// SetLogger implements stage.LoggerAware.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// Workflow implements stage.Handler.
func (h *Handler) Workflow() string {
	return WorkflowName
}

// Execute implements stage.Handler.
func (h *Handler) Execute(ctx context.Context, run *queue.Run, runner *step.Runner) (any, error) {
	if run == nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "execute", "run is required", nil)
	}
	event, err := ParseEvent([]byte(run.EventJSON))
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, h.logger)
	logger.Info(
		"ingesting uploaded video",
		logging.String(logging.FieldEventType, "ingest_start"),
		logging.String("video_resource_id", event.VideoResourceID),
		logging.String("tip_id", event.TipID),
		logging.String("file_name", event.FileName),
	)
	result, err := h.coordinator.Run(ctx, runner, event)
	if err != nil {
		return nil, err
	}
	logger.Info(
		"ingestion complete",
		logging.String(logging.FieldEventType, "ingest_complete"),
		logging.String("mux_asset_id", result.MuxAsset.ID),
		logging.String("mux_playback_id", result.MuxAsset.PublicPlaybackID()),
		logging.String("transcript_request_id", result.Deepgram.RequestID),
	)
	return result, nil
}

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	if h.coordinator == nil {
		return stage.NotReady(WorkflowName, "coordinator not configured")
	}
	if h.cfg != nil {
		if err := h.cfg.ValidateIntegrations(); err != nil {
			return stage.NotReady(WorkflowName, err.Error())
		}
	}
	return stage.Ready(WorkflowName)
}
