// Package daemonrun wires the tipflow daemon process: logging, the run
// store, vendor clients, intake, and the HTTP API, until a signal arrives.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"tipflow/internal/broker"
	"tipflow/internal/config"
	"tipflow/internal/daemon"
	"tipflow/internal/ingest"
	"tipflow/internal/logging"
	"tipflow/internal/metrics"
	"tipflow/internal/notifications"
	"tipflow/internal/queue"
	"tipflow/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when non-empty.
	LogLevel string
}

// Run starts the tipflow daemon and blocks until cmdCtx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logIntegrationSnapshot(logger, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "tipflowd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return err
	}
	defer store.Close()

	d, err := Build(cfg, store, logger)
	if err != nil {
		return err
	}
	defer d.Stop()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'tipflow config validate' and check run store access"),
			logging.String(logging.FieldImpact, "no upload events will be processed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("tipflow daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// Build assembles a daemon with the upload workflow registered, metrics,
// notifications, and the broker consumer when enabled. The caller owns store.
func Build(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	notifier := notifications.NewService(cfg)
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	handler, err := ingest.NewHandlerFromConfig(cfg, notifier)
	if err != nil {
		return nil, fmt.Errorf("build upload workflow: %w", err)
	}
	manager := workflow.NewManager(cfg, store, logger, notifier, m)
	if err := manager.Register(handler); err != nil {
		return nil, fmt.Errorf("register upload workflow: %w", err)
	}

	opts := []daemon.Option{daemon.WithNotifier(notifier), daemon.WithMetrics(m)}
	if cfg.Broker.Enabled {
		opts = append(opts, daemon.WithConsumer(broker.NewConsumer(cfg, store, logger, m)))
	}
	d, err := daemon.New(cfg, store, logger, manager, opts...)
	if err != nil {
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logIntegrationSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("integration snapshot",
		logging.String(logging.FieldEventType, "integration_snapshot"),
		logging.Bool("sanity_token_present", strings.TrimSpace(cfg.Sanity.Token) != ""),
		logging.String("sanity_dataset", cfg.Sanity.Dataset),
		logging.Bool("mux_credentials_present", strings.TrimSpace(cfg.Mux.TokenID) != "" && strings.TrimSpace(cfg.Mux.TokenSecret) != ""),
		logging.Bool("deepgram_key_present", strings.TrimSpace(cfg.Deepgram.APIKey) != ""),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("broker_enabled", cfg.Broker.Enabled),
		logging.Bool("api_auth_enabled", strings.TrimSpace(cfg.API.JWTSecret) != ""),
		logging.String("api_bind", cfg.API.Bind),
		logging.Int("workers", cfg.Workflow.Workers),
	)
}
