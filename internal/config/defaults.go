package config

const (
	defaultDownloadDir        = "~/.local/share/vodstitch/downloads"
	defaultScratchDir         = "~/.local/share/vodstitch/tmp"
	defaultLogDir             = "~/.local/share/vodstitch/logs"
	defaultPort               = 10000
	defaultTwitchDownloader   = "TwitchDownloaderCLI"
	defaultFFmpeg             = "ffmpeg"
	defaultFFprobe            = "ffprobe"
	defaultMaxBacklog         = 3
	defaultMaxRetainedJobs    = 30
	defaultLogLineCap         = 450
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultStageTimeout       = 0
	defaultLogLevel           = "info"
	defaultLogFormat          = "console"
	defaultLogRetentionDays   = 30
	defaultNtfyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		DownloadDir:            defaultDownloadDir,
		ScratchDir:             defaultScratchDir,
		LogDir:                 defaultLogDir,
		Port:                   defaultPort,
		TwitchDownloaderBinary: defaultTwitchDownloader,
		FFmpegBinary:           defaultFFmpeg,
		FFprobeBinary:          defaultFFprobe,
		MaxBacklog:             defaultMaxBacklog,
		MaxRetainedJobs:        defaultMaxRetainedJobs,
		LogLineCap:             defaultLogLineCap,
		QualityFallbacks:       []string{"1080p60", "1080p", "best"},
		QueuePollInterval:      defaultQueuePollInterval,
		ErrorRetryInterval:     defaultErrorRetryInterval,
		HeartbeatInterval:      defaultHeartbeatInterval,
		HeartbeatTimeout:       defaultHeartbeatTimeout,
		StageTimeout:           defaultStageTimeout,
		LogLevel:               defaultLogLevel,
		LogFormat:              defaultLogFormat,
		LogRetentionDays:       defaultLogRetentionDays,
		NtfyRequestTimeout:     defaultNtfyRequestTimeout,
	}
}
