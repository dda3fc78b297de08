package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is structurally usable. Vendor
// credentials are checked separately by ValidateIntegrations so inspection
// commands keep working on hosts without secrets.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateBroker(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateIntegrations ensures every vendor credential the ingestion
// workflow needs is present.
func (c *Config) ValidateIntegrations() error {
	hint := "edit the config file (create with 'tipflow config init')"
	if path, err := DefaultConfigPath(); err == nil {
		hint = fmt.Sprintf("edit %s (create with 'tipflow config init')", path)
	}
	required := []struct {
		key   string
		env   string
		value string
	}{
		{"sanity.project_id", "SANITY_PROJECT_ID", c.Sanity.ProjectID},
		{"sanity.token", "SANITY_API_TOKEN", c.Sanity.Token},
		{"mux.token_id", "MUX_TOKEN_ID", c.Mux.TokenID},
		{"mux.token_secret", "MUX_TOKEN_SECRET", c.Mux.TokenSecret},
		{"deepgram.api_key", "DEEPGRAM_API_KEY", c.Deepgram.APIKey},
		{"deepgram.callback_url", "DEEPGRAM_CALLBACK_URL", c.Deepgram.CallbackURL},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%s is required. Set %s env var or %s", field.key, field.env, hint)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"notifications.request_timeout":    c.Notifications.RequestTimeout,
		"workflow.workers":                 c.Workflow.Workers,
		"workflow.queue_poll_interval":     c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":    c.Workflow.ErrorRetryInterval,
		"workflow.step_max_attempts":       c.Workflow.StepMaxAttempts,
		"workflow.step_initial_backoff_ms": c.Workflow.StepInitialBackoff,
		"workflow.step_max_backoff":        c.Workflow.StepMaxBackoff,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	if c.Workflow.StepMaxElapsed < 0 {
		return errors.New("workflow.step_max_elapsed must be >= 0")
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	endpoints := map[string]string{
		"mux.base_url":      c.Mux.BaseURL,
		"deepgram.base_url": c.Deepgram.BaseURL,
	}
	if c.Sanity.BaseURL != "" {
		endpoints["sanity.base_url"] = c.Sanity.BaseURL
	}
	if c.Deepgram.CallbackURL != "" {
		endpoints["deepgram.callback_url"] = c.Deepgram.CallbackURL
	}
	for key, raw := range endpoints {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	for key, rate := range map[string]float64{
		"sanity.requests_per_second":   c.Sanity.RequestsPerSecond,
		"mux.requests_per_second":      c.Mux.RequestsPerSecond,
		"deepgram.requests_per_second": c.Deepgram.RequestsPerSecond,
	} {
		if rate < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}

func (c *Config) validateBroker() error {
	if !c.Broker.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Broker.URL) == "" {
		return errors.New("broker.url must be set when broker.enabled is true (or set TIPFLOW_AMQP_URL)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	for step, level := range c.Logging.StepOverrides {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.step_overrides.%s: unsupported level %q", step, level)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
