package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeSanity()
	c.normalizeMux()
	c.normalizeDeepgram()
	c.normalizeBroker()
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.normalizeMetrics()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.JWTSecret = envOverride("TIPFLOW_JWT_SECRET", c.API.JWTSecret)
	c.API.JWTIssuer = strings.TrimSpace(c.API.JWTIssuer)
	if c.API.JWTIssuer == "" {
		c.API.JWTIssuer = defaultJWTIssuer
	}
}

func (c *Config) normalizeSanity() {
	c.Sanity.ProjectID = envOverride("SANITY_PROJECT_ID", c.Sanity.ProjectID)
	c.Sanity.Token = envOverride("SANITY_API_TOKEN", c.Sanity.Token)
	c.Sanity.Dataset = strings.TrimSpace(c.Sanity.Dataset)
	if c.Sanity.Dataset == "" {
		c.Sanity.Dataset = defaultSanityDataset
	}
	c.Sanity.APIVersion = strings.TrimPrefix(strings.TrimSpace(c.Sanity.APIVersion), "v")
	if c.Sanity.APIVersion == "" {
		c.Sanity.APIVersion = defaultSanityAPIVersion
	}
	c.Sanity.BaseURL = strings.TrimRight(strings.TrimSpace(c.Sanity.BaseURL), "/")
	if c.Sanity.RequestTimeout <= 0 {
		c.Sanity.RequestTimeout = defaultVendorTimeout
	}
}

func (c *Config) normalizeMux() {
	c.Mux.TokenID = envOverride("MUX_TOKEN_ID", c.Mux.TokenID)
	c.Mux.TokenSecret = envOverride("MUX_TOKEN_SECRET", c.Mux.TokenSecret)
	c.Mux.BaseURL = strings.TrimRight(strings.TrimSpace(c.Mux.BaseURL), "/")
	if c.Mux.BaseURL == "" {
		c.Mux.BaseURL = defaultMuxBaseURL
	}
	c.Mux.PlaybackPolicy = strings.ToLower(strings.TrimSpace(c.Mux.PlaybackPolicy))
	if c.Mux.PlaybackPolicy == "" {
		c.Mux.PlaybackPolicy = defaultMuxPlaybackPolicy
	}
	if c.Mux.RequestTimeout <= 0 {
		c.Mux.RequestTimeout = defaultVendorTimeout
	}
}

func (c *Config) normalizeDeepgram() {
	c.Deepgram.APIKey = envOverride("DEEPGRAM_API_KEY", c.Deepgram.APIKey)
	c.Deepgram.CallbackURL = envOverride("DEEPGRAM_CALLBACK_URL", c.Deepgram.CallbackURL)
	c.Deepgram.BaseURL = strings.TrimRight(strings.TrimSpace(c.Deepgram.BaseURL), "/")
	if c.Deepgram.BaseURL == "" {
		c.Deepgram.BaseURL = defaultDeepgramBaseURL
	}
	c.Deepgram.Model = strings.TrimSpace(c.Deepgram.Model)
	if c.Deepgram.Model == "" {
		c.Deepgram.Model = defaultDeepgramModel
	}
	if c.Deepgram.RequestTimeout <= 0 {
		c.Deepgram.RequestTimeout = defaultVendorTimeout
	}
}

func (c *Config) normalizeBroker() {
	c.Broker.URL = envOverride("TIPFLOW_AMQP_URL", c.Broker.URL)
	c.Broker.Queue = strings.TrimSpace(c.Broker.Queue)
	if c.Broker.Queue == "" {
		c.Broker.Queue = defaultBrokerQueue
	}
	if c.Broker.Prefetch <= 0 {
		c.Broker.Prefetch = defaultBrokerPrefetch
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkflowWorkers
	}
	if c.Workflow.StepMaxAttempts <= 0 {
		c.Workflow.StepMaxAttempts = defaultStepMaxAttempts
	}
	if c.Workflow.StepInitialBackoff <= 0 {
		c.Workflow.StepInitialBackoff = defaultStepInitialBackoffMillis
	}
	if c.Workflow.StepMaxBackoff <= 0 {
		c.Workflow.StepMaxBackoff = defaultStepMaxBackoff
	}
	if c.Workflow.AnnounceWaitTimeout <= 0 {
		c.Workflow.AnnounceWaitTimeout = defaultAnnounceWaitTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.StepOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.StepOverrides))
		for step, level := range c.Logging.StepOverrides {
			key := strings.ToLower(strings.TrimSpace(step))
			value := strings.ToLower(strings.TrimSpace(level))
			if key == "" || value == "" {
				continue
			}
			overrides[key] = value
		}
		c.Logging.StepOverrides = overrides
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Path = strings.TrimSpace(c.Metrics.Path)
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		c.Metrics.Path = "/" + c.Metrics.Path
	}
}

// envOverride returns the trimmed environment value for key when set, so
// secrets exported in the environment win over values checked into the file.
func envOverride(key, current string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(current)
}
