package config

const (
	defaultPacksDir        = "~/.local/share/voicebox/packs"
	defaultLogDir          = "~/.local/share/voicebox/logs"
	defaultAPIBind         = "127.0.0.1:7512"
	defaultDownloadTimeout = 300
	defaultMaxArchiveMiB   = 512
	defaultNtfyTimeout     = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			PacksDir: defaultPacksDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Import: Import{
			DownloadTimeout: defaultDownloadTimeout,
			MaxArchiveMiB:   defaultMaxArchiveMiB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Imports:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
