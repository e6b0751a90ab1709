package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRadiko()
	c.normalizeRecording()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRadiko() {
	c.Radiko.AreaID = strings.ToUpper(strings.TrimSpace(c.Radiko.AreaID))
	if c.Radiko.AuthTimeout <= 0 {
		c.Radiko.AuthTimeout = defaultAuthTimeout
	}
	if c.Radiko.ReplayWindowDays <= 0 {
		c.Radiko.ReplayWindowDays = defaultReplayWindow
	}
}

func (c *Config) normalizeRecording() {
	if c.Recording.MaxConcurrency <= 0 {
		c.Recording.MaxConcurrency = defaultConcurrency
	}
	if c.Recording.SegmentTimeoutSeconds <= 0 {
		c.Recording.SegmentTimeoutSeconds = defaultSegmentTO
	}
	if c.Recording.RetryAttempts <= 0 {
		c.Recording.RetryAttempts = defaultRetryAttempts
	}
	if c.Recording.RetryBackoffSeconds <= 0 {
		c.Recording.RetryBackoffSeconds = defaultRetryBackoff
	}
	if c.Recording.MinSuccessRatio == 0 {
		c.Recording.MinSuccessRatio = defaultSuccessRatio
	}
	if c.Recording.TranscodeTimeout <= 0 {
		c.Recording.TranscodeTimeout = defaultTranscodeTO
	}
	c.Recording.OutputFormat = strings.ToLower(strings.TrimSpace(c.Recording.OutputFormat))
	if c.Recording.OutputFormat == "" {
		c.Recording.OutputFormat = defaultOutputFormat
	}
	if c.Recording.BitrateKbps <= 0 {
		c.Recording.BitrateKbps = defaultBitrateKbps
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
