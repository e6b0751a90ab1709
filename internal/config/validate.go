package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var supportedFormats = map[string]struct{}{
	"mp3":  {},
	"aac":  {},
	"m4a":  {},
	"flac": {},
	"opus": {},
}

// SupportedFormats returns the sorted list of recognized output formats.
func SupportedFormats() []string {
	out := make([]string, 0, len(supportedFormats))
	for f := range supportedFormats {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRecording(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateRecording() error {
	if err := ensurePositiveMap(map[string]int{
		"recording.max_concurrency":         c.Recording.MaxConcurrency,
		"recording.segment_timeout_seconds": c.Recording.SegmentTimeoutSeconds,
		"recording.retry_attempts":          c.Recording.RetryAttempts,
		"recording.retry_backoff_seconds":   c.Recording.RetryBackoffSeconds,
		"recording.bitrate_kbps":            c.Recording.BitrateKbps,
		"recording.transcode_timeout":       c.Recording.TranscodeTimeout,
		"radiko.replay_window_days":         c.Radiko.ReplayWindowDays,
	}); err != nil {
		return err
	}
	if c.Recording.MinSuccessRatio <= 0 || c.Recording.MinSuccessRatio > 1 {
		return errors.New("recording.min_success_ratio must be in (0, 1]")
	}
	if _, ok := supportedFormats[c.Recording.OutputFormat]; !ok {
		return fmt.Errorf("recording.output_format %q is not supported (choose one of %s)",
			c.Recording.OutputFormat, strings.Join(SupportedFormats(), ", "))
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	})
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
