package testsupport

import (
	"path/filepath"
	"testing"

	"tipflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Sanity.ProjectID = "test-project"
	cfgVal.Sanity.Token = "sanity-token"
	cfgVal.Mux.TokenID = "mux-id"
	cfgVal.Mux.TokenSecret = "mux-secret"
	cfgVal.Deepgram.APIKey = "deepgram-key"
	cfgVal.Deepgram.CallbackURL = "https://example.test/api/deepgram/webhook"
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.StepInitialBackoff = 1
	cfgVal.Workflow.StepMaxBackoff = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithVendorBaseURL points every vendor client at the same test server.
func WithVendorBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sanity.BaseURL = url
		b.cfg.Mux.BaseURL = url
		b.cfg.Deepgram.BaseURL = url
	}
}

// WithStepAttempts overrides the per-step retry budget.
func WithStepAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.StepMaxAttempts = attempts
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
