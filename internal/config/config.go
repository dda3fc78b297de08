package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// API contains the HTTP intake and inspection surface settings.
type API struct {
	Bind      string `toml:"bind"`
	JWTSecret string `toml:"jwt_secret"`
	JWTIssuer string `toml:"jwt_issuer"`
}

// Sanity contains configuration for the content store.
type Sanity struct {
	ProjectID         string  `toml:"project_id"`
	Dataset           string  `toml:"dataset"`
	APIVersion        string  `toml:"api_version"`
	Token             string  `toml:"token"`
	BaseURL           string  `toml:"base_url"`
	RequestTimeout    int     `toml:"request_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Mux contains configuration for the video hosting platform.
type Mux struct {
	TokenID           string  `toml:"token_id"`
	TokenSecret       string  `toml:"token_secret"`
	BaseURL           string  `toml:"base_url"`
	PlaybackPolicy    string  `toml:"playback_policy"`
	RequestTimeout    int     `toml:"request_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Deepgram contains configuration for the transcription vendor.
type Deepgram struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	CallbackURL       string  `toml:"callback_url"`
	RequestTimeout    int     `toml:"request_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	VideoResource  bool   `toml:"video_resource"`
	RunComplete    bool   `toml:"run_complete"`
	Errors         bool   `toml:"errors"`
}

// Broker contains configuration for the optional AMQP event intake.
type Broker struct {
	Enabled  bool   `toml:"enabled"`
	URL      string `toml:"url"`
	Queue    string `toml:"queue"`
	Prefetch int    `toml:"prefetch"`
}

// Workflow contains configuration for run scheduling and step retries.
type Workflow struct {
	Workers             int `toml:"workers"`
	QueuePollInterval   int `toml:"queue_poll_interval"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
	HeartbeatInterval   int `toml:"heartbeat_interval"`
	HeartbeatTimeout    int `toml:"heartbeat_timeout"`
	StepMaxAttempts     int `toml:"step_max_attempts"`
	StepInitialBackoff  int `toml:"step_initial_backoff_ms"`
	StepMaxBackoff      int `toml:"step_max_backoff"`
	StepMaxElapsed      int `toml:"step_max_elapsed"`
	AnnounceWaitTimeout int `toml:"announce_wait_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string            `toml:"format"`
	Level         string            `toml:"level"`
	StepOverrides map[string]string `toml:"step_overrides"`
}

// Metrics toggles the Prometheus endpoint on the API server.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for tipflow.
//
// Configuration sections by subsystem:
//   - Paths: data (run store) and log directories
//   - API: HTTP bind address and bearer token verification
//   - Sanity: content store project, dataset, and token
//   - Mux: video hosting credentials and playback policy
//   - Deepgram: transcription credentials and callback
//   - Notifications: ntfy push notification settings
//   - Broker: AMQP event intake
//   - Workflow: worker count, polling, heartbeats, and step retries
//   - Logging: log format, level, and per-step overrides
//   - Metrics: Prometheus exposition
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Sanity        Sanity        `toml:"sanity"`
	Mux           Mux           `toml:"mux"`
	Deepgram      Deepgram      `toml:"deepgram"`
	Notifications Notifications `toml:"notifications"`
	Broker        Broker        `toml:"broker"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tipflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the run store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "tipflow.db")
}

// LogFilePath returns the JSON log file written by the daemon.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "tipflow.log")
}

// LockPath returns the daemon single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "tipflowd.lock")
}

// SanityBaseURL returns the API host for the configured project.
func (c *Config) SanityBaseURL() string {
	if base := strings.TrimSpace(c.Sanity.BaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	return fmt.Sprintf("https://%s.api.sanity.io", c.Sanity.ProjectID)
}

// PollInterval returns the idle sleep between queue polls.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Workflow.QueuePollInterval)
}

// ErrorRetryDelay returns the sleep applied after a store failure.
func (c *Config) ErrorRetryDelay() time.Duration {
	return seconds(c.Workflow.ErrorRetryInterval)
}

// HeartbeatInterval returns how often a running run refreshes its heartbeat.
func (c *Config) HeartbeatInterval() time.Duration {
	return seconds(c.Workflow.HeartbeatInterval)
}

// HeartbeatTimeout returns how long a heartbeat stays fresh before reclaim.
func (c *Config) HeartbeatTimeout() time.Duration {
	return seconds(c.Workflow.HeartbeatTimeout)
}

// StepRetry describes the retry budget applied to every durable step.
type StepRetry struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// StepRetryPolicy returns the configured step retry budget.
func (c *Config) StepRetryPolicy() StepRetry {
	return StepRetry{
		MaxAttempts:     uint(c.Workflow.StepMaxAttempts),
		InitialInterval: time.Duration(c.Workflow.StepInitialBackoff) * time.Millisecond,
		MaxInterval:     seconds(c.Workflow.StepMaxBackoff),
		MaxElapsed:      seconds(c.Workflow.StepMaxElapsed),
	}
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
