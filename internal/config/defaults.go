package config

const (
	defaultConfigPath                = "~/.config/tipflow/config.toml"
	defaultDataDir                   = "~/.local/share/tipflow"
	defaultLogDir                    = "~/.local/share/tipflow/logs"
	defaultAPIBind                   = "127.0.0.1:7410"
	defaultJWTIssuer                 = "tipflow"
	defaultSanityDataset             = "production"
	defaultSanityAPIVersion          = "2023-06-01"
	defaultMuxBaseURL                = "https://api.mux.com"
	defaultMuxPlaybackPolicy         = "public"
	defaultDeepgramBaseURL           = "https://api.deepgram.com"
	defaultDeepgramModel             = "nova-2"
	defaultVendorTimeout             = 30
	defaultVendorRequestsPerSecond   = 5
	defaultBrokerQueue               = "tipflow.events"
	defaultBrokerPrefetch            = 8
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultWorkflowWorkers           = 2
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultStepMaxAttempts           = 4
	defaultStepInitialBackoffMillis  = 500
	defaultStepMaxBackoff            = 30
	defaultStepMaxElapsed            = 300
	defaultAnnounceWaitTimeout       = 10
	defaultMetricsPath               = "/metrics"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		API: API{
			Bind:      defaultAPIBind,
			JWTIssuer: defaultJWTIssuer,
		},
		Sanity: Sanity{
			Dataset:           defaultSanityDataset,
			APIVersion:        defaultSanityAPIVersion,
			RequestTimeout:    defaultVendorTimeout,
			RequestsPerSecond: defaultVendorRequestsPerSecond,
		},
		Mux: Mux{
			BaseURL:           defaultMuxBaseURL,
			PlaybackPolicy:    defaultMuxPlaybackPolicy,
			RequestTimeout:    defaultVendorTimeout,
			RequestsPerSecond: defaultVendorRequestsPerSecond,
		},
		Deepgram: Deepgram{
			BaseURL:           defaultDeepgramBaseURL,
			Model:             defaultDeepgramModel,
			RequestTimeout:    defaultVendorTimeout,
			RequestsPerSecond: defaultVendorRequestsPerSecond,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			VideoResource:  true,
			RunComplete:    false,
			Errors:         true,
		},
		Broker: Broker{
			Queue:    defaultBrokerQueue,
			Prefetch: defaultBrokerPrefetch,
		},
		Workflow: Workflow{
			Workers:             defaultWorkflowWorkers,
			QueuePollInterval:   2,
			ErrorRetryInterval:  10,
			HeartbeatInterval:   defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:    defaultWorkflowHeartbeatTimeout,
			StepMaxAttempts:     defaultStepMaxAttempts,
			StepInitialBackoff:  defaultStepInitialBackoffMillis,
			StepMaxBackoff:      defaultStepMaxBackoff,
			StepMaxElapsed:      defaultStepMaxElapsed,
			AnnounceWaitTimeout: defaultAnnounceWaitTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    defaultMetricsPath,
		},
	}
}
