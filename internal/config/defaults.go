package config

const (
	defaultConfigPath            = "~/.config/podscribe/config.toml"
	defaultRootDir               = "~/.local/share/podscribe"
	defaultFeedURL               = "https://feeds.megaphone.fm/ridehome"
	defaultFeedLookahead         = 5
	defaultFeedUserAgent         = "podscribe/dev"
	defaultFeedTimeoutSeconds    = 30
	defaultDownloadTimeout       = 1800
	defaultDownloadMaxAttempts   = 3
	defaultDownloadInitialWait   = 2
	defaultDownloadMaxWait       = 30
	defaultTranscriptionBackend  = BackendWhisper
	defaultTranscriptionModel    = "base"
	defaultWhisperCommand        = "whisper"
	defaultWhisperXVADMethod     = "silero"
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultHistoryFileName       = "history.db"
	defaultAudioDirName          = "audio"
	defaultDataDirName           = "data"
	defaultLogDirName            = "logs"
	defaultHistoryEnabled        = true
	defaultNotifyEpisodesEnabled = true
)

// Supported transcription backends.
const (
	BackendWhisper  = "whisper"
	BackendWhisperX = "whisperx"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RootDir: defaultRootDir,
		},
		Feed: Feed{
			URL:                   defaultFeedURL,
			Lookahead:             defaultFeedLookahead,
			UserAgent:             defaultFeedUserAgent,
			RequestTimeoutSeconds: defaultFeedTimeoutSeconds,
		},
		Download: Download{
			TimeoutSeconds:        defaultDownloadTimeout,
			MaxAttempts:           defaultDownloadMaxAttempts,
			InitialBackoffSeconds: defaultDownloadInitialWait,
			MaxBackoffSeconds:     defaultDownloadMaxWait,
		},
		Transcription: Transcription{
			Backend:           defaultTranscriptionBackend,
			Model:             defaultTranscriptionModel,
			WhisperCommand:    defaultWhisperCommand,
			WhisperXVADMethod: defaultWhisperXVADMethod,
		},
		Episodes: Episodes{
			DefaultTags: []string{"tech", "news"},
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Episodes:       defaultNotifyEpisodesEnabled,
			Run:            true,
			Errors:         true,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
