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

// Paths contains the directory layout. AudioDir, DataDir and LogDir default to
// subdirectories of RootDir when left empty.
type Paths struct {
	RootDir  string `toml:"root_dir"`
	AudioDir string `toml:"audio_dir"`
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
}

// Feed contains the podcast feed source settings.
type Feed struct {
	URL                   string `toml:"url"`
	Lookahead             int    `toml:"lookahead"`
	UserAgent             string `toml:"user_agent"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Download contains audio retrieval settings.
type Download struct {
	TimeoutSeconds        int `toml:"timeout_seconds"`
	MaxAttempts           int `toml:"max_attempts"`
	InitialBackoffSeconds int `toml:"initial_backoff_seconds"`
	MaxBackoffSeconds     int `toml:"max_backoff_seconds"`
}

// Transcription selects and tunes the speech-to-text backend.
type Transcription struct {
	Backend           string `toml:"backend"`
	Model             string `toml:"model"`
	Language          string `toml:"language"`
	WhisperCommand    string `toml:"whisper_command"`
	CUDAEnabled       bool   `toml:"cuda_enabled"`
	WhisperXVADMethod string `toml:"whisperx_vad_method"`
	WhisperXHFToken   string `toml:"whisperx_hf_token"`
}

// Episodes contains defaults applied to newly created episode records.
type Episodes struct {
	DefaultTags []string `toml:"default_tags"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Episodes       bool   `toml:"episodes"`
	Run            bool   `toml:"run"`
	Errors         bool   `toml:"errors"`
}

// History controls the SQLite run journal.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Default: <data_dir>/history.db
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for podscribe.
//
// Configuration sections by subsystem:
//   - Paths: root, audio, data, and log directories
//   - Feed: RSS source and fetch window
//   - Download: per-attempt timeout and retry backoff
//   - Transcription: speech-to-text backend and model
//   - Episodes: defaults stamped on new records
//   - Notifications: ntfy push notification settings
//   - History: SQLite run journal
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Feed          Feed          `toml:"feed"`
	Download      Download      `toml:"download"`
	Transcription Transcription `toml:"transcription"`
	Episodes      Episodes      `toml:"episodes"`
	Notifications Notifications `toml:"notifications"`
	History       History       `toml:"history"`
	Logging       Logging       `toml:"logging"`
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

	projectPath, err := filepath.Abs("podscribe.toml")
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

// EnsureDirectories creates the audio, data, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.AudioDir, c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the processed-ID ledger document path.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.DataDir, "processed.json")
}

// ArchivePath returns the episode archive document path.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.Paths.DataDir, "episodes.json")
}

// LockPath returns the single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "podscribe.lock")
}

// LogFilePath returns the log file written alongside stderr output.
func (c *Config) LogFilePath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "podscribe.log")
}

// AudioPath returns the deterministic local audio file for an episode fingerprint.
func (c *Config) AudioPath(id string) string {
	return filepath.Join(c.Paths.AudioDir, id+".mp3")
}

// FeedRequestTimeout returns the feed fetch timeout as a duration.
func (c *Config) FeedRequestTimeout() time.Duration {
	return time.Duration(c.Feed.RequestTimeoutSeconds) * time.Second
}

// DownloadTimeout returns the per-attempt audio download timeout.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
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

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
