package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"tipflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "tipflow")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "tipflow.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.API.Bind != "127.0.0.1:7410" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if cfg.Mux.PlaybackPolicy != "public" {
		t.Fatalf("expected public playback policy, got %q", cfg.Mux.PlaybackPolicy)
	}
	if cfg.Broker.Enabled {
		t.Fatal("expected broker disabled by default")
	}
	if cfg.Workflow.HeartbeatInterval != config.Default().Workflow.HeartbeatInterval {
		t.Fatalf("unexpected heartbeat interval: %d", cfg.Workflow.HeartbeatInterval)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "tipflow.toml")

	type payload struct {
		Sanity struct {
			ProjectID string `toml:"project_id"`
			Dataset   string `toml:"dataset"`
		} `toml:"sanity"`
		Workflow struct {
			Workers           int `toml:"workers"`
			HeartbeatInterval int `toml:"heartbeat_interval"`
			HeartbeatTimeout  int `toml:"heartbeat_timeout"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Sanity.ProjectID = "abc123"
	custom.Sanity.Dataset = "staging"
	custom.Workflow.Workers = 4
	custom.Workflow.HeartbeatInterval = 20
	custom.Workflow.HeartbeatTimeout = 200
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Sanity.Dataset != "staging" {
		t.Fatalf("expected dataset from file, got %q", cfg.Sanity.Dataset)
	}
	if cfg.SanityBaseURL() != "https://abc123.api.sanity.io" {
		t.Fatalf("unexpected sanity base url: %q", cfg.SanityBaseURL())
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Workflow.Workers)
	}
	if cfg.HeartbeatTimeout() != 200*time.Second {
		t.Fatalf("expected heartbeat timeout 200s, got %s", cfg.HeartbeatTimeout())
	}
}

func TestEnvVarOverridesConfigFileForSecrets(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "tipflow.toml")

	type payload struct {
		Sanity struct {
			Token string `toml:"token"`
		} `toml:"sanity"`
		Mux struct {
			TokenID     string `toml:"token_id"`
			TokenSecret string `toml:"token_secret"`
		} `toml:"mux"`
		Deepgram struct {
			APIKey string `toml:"api_key"`
		} `toml:"deepgram"`
	}
	custom := payload{}
	custom.Sanity.Token = "file-sanity"
	custom.Mux.TokenID = "file-mux-id"
	custom.Mux.TokenSecret = "file-mux-secret"
	custom.Deepgram.APIKey = "file-deepgram"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("SANITY_API_TOKEN", "env-sanity")
	t.Setenv("MUX_TOKEN_SECRET", "env-mux-secret")
	t.Setenv("DEEPGRAM_API_KEY", "env-deepgram")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Sanity.Token != "env-sanity" {
		t.Errorf("expected sanity token from env, got %q", cfg.Sanity.Token)
	}
	if cfg.Mux.TokenID != "file-mux-id" {
		t.Errorf("expected mux token id from file, got %q", cfg.Mux.TokenID)
	}
	if cfg.Mux.TokenSecret != "env-mux-secret" {
		t.Errorf("expected mux secret from env, got %q", cfg.Mux.TokenSecret)
	}
	if cfg.Deepgram.APIKey != "env-deepgram" {
		t.Errorf("expected deepgram key from env, got %q", cfg.Deepgram.APIKey)
	}
}

func TestValidateRejectsHeartbeatTimeoutBelowInterval(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.HeartbeatInterval = 30
	cfg.Workflow.HeartbeatTimeout = 30
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "heartbeat_timeout") {
		t.Fatalf("expected heartbeat validation error, got %v", err)
	}
}

func TestValidateRequiresBrokerURLWhenEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Broker.Enabled = true
	cfg.Broker.URL = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "broker.url") {
		t.Fatalf("expected broker validation error, got %v", err)
	}
}

func TestValidateRejectsUnknownStepOverrideLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.StepOverrides = map[string]string{"order the transcript": "loud"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected step override validation error")
	}
}

func TestValidateIntegrationsNamesMissingKey(t *testing.T) {
	cfg := config.Default()
	cfg.Sanity.ProjectID = "proj"
	cfg.Sanity.Token = "tok"
	cfg.Mux.TokenID = "id"
	cfg.Mux.TokenSecret = "secret"
	cfg.Deepgram.CallbackURL = "https://example.com/hooks/deepgram"
	err := cfg.ValidateIntegrations()
	if err == nil || !strings.Contains(err.Error(), "deepgram.api_key") {
		t.Fatalf("expected deepgram.api_key error, got %v", err)
	}
	cfg.Deepgram.APIKey = "key"
	if err := cfg.ValidateIntegrations(); err != nil {
		t.Fatalf("expected complete credentials to validate, got %v", err)
	}
}

func TestCreateSampleParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Deepgram.Model != "nova-2" {
		t.Fatalf("unexpected sample deepgram model %q", cfg.Deepgram.Model)
	}
}

func TestStepRetryPolicyConvertsUnits(t *testing.T) {
	cfg := config.Default()
	policy := cfg.StepRetryPolicy()
	if policy.MaxAttempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", policy.MaxAttempts)
	}
	if policy.InitialInterval != 500*time.Millisecond {
		t.Fatalf("unexpected initial interval %s", policy.InitialInterval)
	}
	if policy.MaxInterval != 30*time.Second {
		t.Fatalf("unexpected max interval %s", policy.MaxInterval)
	}
}
