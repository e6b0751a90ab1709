package config

const (
	defaultStagingDir    = "~/.local/share/airshift/staging"
	defaultOutputDir     = "~/recordings"
	defaultLogDir        = "~/.local/share/airshift/logs"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultAuthTimeout   = 15
	defaultReplayWindow  = 7
	defaultConcurrency   = 8
	defaultSegmentTO     = 30
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 1
	defaultSuccessRatio  = 0.8
	defaultOutputFormat  = "mp3"
	defaultBitrateKbps   = 192
	defaultTranscodeTO   = 1800
	defaultNotifyTimeout = 10
	defaultQueuePoll     = 5
	defaultErrorRetry    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Radiko: Radiko{
			AuthTimeout:      defaultAuthTimeout,
			ReplayWindowDays: defaultReplayWindow,
		},
		Recording: Recording{
			MaxConcurrency:        defaultConcurrency,
			SegmentTimeoutSeconds: defaultSegmentTO,
			RetryAttempts:         defaultRetryAttempts,
			RetryBackoffSeconds:   defaultRetryBackoff,
			MinSuccessRatio:       defaultSuccessRatio,
			OutputFormat:          defaultOutputFormat,
			BitrateKbps:           defaultBitrateKbps,
			TranscodeTimeout:      defaultTranscodeTO,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePoll,
			ErrorRetryInterval: defaultErrorRetry,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
