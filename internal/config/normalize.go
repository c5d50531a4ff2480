package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"podscribe/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFeed()
	c.normalizeTranscription()
	c.normalizeEpisodes()
	c.normalizeNotifications()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RootDir) == "" {
		c.Paths.RootDir = defaultRootDir
	}
	if c.Paths.RootDir, err = expandPath(strings.TrimSpace(c.Paths.RootDir)); err != nil {
		return fmt.Errorf("paths.root_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AudioDir) == "" {
		c.Paths.AudioDir = filepath.Join(c.Paths.RootDir, defaultAudioDirName)
	}
	if c.Paths.AudioDir, err = expandPath(strings.TrimSpace(c.Paths.AudioDir)); err != nil {
		return fmt.Errorf("paths.audio_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = filepath.Join(c.Paths.RootDir, defaultDataDirName)
	}
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.RootDir, defaultLogDirName)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFeed() {
	c.Feed.URL = strings.TrimSpace(c.Feed.URL)
	if value, ok := os.LookupEnv("PODSCRIBE_FEED_URL"); ok && strings.TrimSpace(value) != "" {
		c.Feed.URL = strings.TrimSpace(value)
	}
	if c.Feed.URL == "" {
		c.Feed.URL = defaultFeedURL
	}
	c.Feed.UserAgent = strings.TrimSpace(c.Feed.UserAgent)
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = defaultFeedUserAgent
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Backend = strings.ToLower(strings.TrimSpace(c.Transcription.Backend))
	if c.Transcription.Backend == "" {
		c.Transcription.Backend = defaultTranscriptionBackend
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	if code, ok := language.ToISO2(c.Transcription.Language); ok {
		c.Transcription.Language = code
	}
	c.Transcription.WhisperCommand = strings.TrimSpace(c.Transcription.WhisperCommand)
	if c.Transcription.WhisperCommand == "" {
		c.Transcription.WhisperCommand = defaultWhisperCommand
	}
	c.Transcription.WhisperXVADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.WhisperXVADMethod))
	if c.Transcription.WhisperXVADMethod == "" {
		c.Transcription.WhisperXVADMethod = defaultWhisperXVADMethod
	}
	c.Transcription.WhisperXHFToken = strings.TrimSpace(c.Transcription.WhisperXHFToken)
	if c.Transcription.WhisperXHFToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Transcription.WhisperXHFToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Transcription.WhisperXHFToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeEpisodes() {
	tags := make([]string, 0, len(c.Episodes.DefaultTags))
	seen := make(map[string]struct{}, len(c.Episodes.DefaultTags))
	for _, tag := range c.Episodes.DefaultTags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	c.Episodes.DefaultTags = tags
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("PODSCRIBE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = filepath.Join(c.Paths.DataDir, defaultHistoryFileName)
		return nil
	}
	var err error
	if c.History.Path, err = expandPath(strings.TrimSpace(c.History.Path)); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
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
