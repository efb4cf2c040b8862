package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d outside 1-65535", c.Port))
	}
	if strings.TrimSpace(c.DownloadDir) == "" {
		problems = append(problems, "download_dir is required")
	}
	if strings.TrimSpace(c.ScratchDir) == "" {
		problems = append(problems, "scratch_dir is required")
	}
	if strings.TrimSpace(c.LogDir) == "" {
		problems = append(problems, "log_dir is required")
	}
	if c.DownloadDir != "" && c.DownloadDir == c.ScratchDir {
		problems = append(problems, "download_dir and scratch_dir must differ so scratch cleanup cannot remove final artifacts")
	}
	if c.TwitchDownloaderBinary == "" {
		problems = append(problems, "twitchdownloader_binary is required")
	}
	if c.FFmpegBinary == "" {
		problems = append(problems, "ffmpeg_binary is required")
	}
	if c.MaxBacklog < 1 {
		problems = append(problems, "max_backlog must be at least 1")
	}
	if c.MaxRetainedJobs < 1 {
		problems = append(problems, "max_retained_jobs must be at least 1")
	}
	if c.LogLineCap < 10 {
		problems = append(problems, "log_line_cap must be at least 10")
	}
	if c.QueuePollInterval < 1 {
		problems = append(problems, "queue_poll_interval must be at least 1 second")
	}
	if c.ErrorRetryInterval < 1 {
		problems = append(problems, "error_retry_interval must be at least 1 second")
	}
	if c.HeartbeatInterval < 1 {
		problems = append(problems, "heartbeat_interval must be at least 1 second")
	}
	if c.HeartbeatTimeout <= c.HeartbeatInterval {
		problems = append(problems, "heartbeat_timeout must exceed heartbeat_interval")
	}
	if c.StageTimeout < 0 {
		problems = append(problems, "stage_timeout must not be negative")
	}
	if len(c.QualityFallbacks) == 0 {
		problems = append(problems, "quality_fallbacks must list at least one candidate")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
