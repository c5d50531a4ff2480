package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"podscribe/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFeed() error {
	parsed, err := url.Parse(c.Feed.URL)
	if err != nil {
		return fmt.Errorf("feed.url is invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("feed.url must be an http or https URL, got %q", c.Feed.URL)
	}
	if c.Feed.Lookahead < 0 {
		return errors.New("feed.lookahead must be zero or positive")
	}
	if c.Feed.RequestTimeoutSeconds <= 0 {
		return errors.New("feed.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.TimeoutSeconds <= 0 {
		return errors.New("download.timeout_seconds must be positive")
	}
	if c.Download.MaxAttempts <= 0 {
		return errors.New("download.max_attempts must be positive")
	}
	if c.Download.InitialBackoffSeconds < 0 {
		return errors.New("download.initial_backoff_seconds must be zero or positive")
	}
	if c.Download.MaxBackoffSeconds < c.Download.InitialBackoffSeconds {
		return errors.New("download.max_backoff_seconds must be at least download.initial_backoff_seconds")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Backend {
	case BackendWhisper, BackendWhisperX:
	default:
		return fmt.Errorf("transcription.backend must be %q or %q, got %q", BackendWhisper, BackendWhisperX, c.Transcription.Backend)
	}
	if c.Transcription.Language != "" {
		if _, ok := language.ToISO2(c.Transcription.Language); !ok {
			return fmt.Errorf("transcription.language %q is not a recognized language", c.Transcription.Language)
		}
	}
	if c.Transcription.Backend == BackendWhisperX {
		switch c.Transcription.WhisperXVADMethod {
		case "silero", "pyannote":
		default:
			return fmt.Errorf("transcription.whisperx_vad_method must be silero or pyannote, got %q", c.Transcription.WhisperXVADMethod)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := strings.TrimSpace(c.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("notifications.ntfy_topic must be a full ntfy URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
