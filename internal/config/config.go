package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Config encapsulates all configuration values for vodstitch.
type Config struct {
	// Paths and listen address.
	DownloadDir string `toml:"download_dir"`
	ScratchDir  string `toml:"scratch_dir"`
	LogDir      string `toml:"log_dir"`
	Port        int    `toml:"port"`
	AdminToken  string `toml:"admin_token"`

	// External binaries; both must be reachable on PATH.
	TwitchDownloaderBinary string `toml:"twitchdownloader_binary"`
	FFmpegBinary           string `toml:"ffmpeg_binary"`
	FFprobeBinary          string `toml:"ffprobe_binary"`

	// Queue limits.
	MaxBacklog      int `toml:"max_backlog"`
	MaxRetainedJobs int `toml:"max_retained_jobs"`
	LogLineCap      int `toml:"log_line_cap"`

	// Quality candidates tried in order until one download succeeds.
	QualityFallbacks []string `toml:"quality_fallbacks"`

	// Workflow timing, in seconds.
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	StageTimeout       int `toml:"stage_timeout"`

	// Logging.
	LogLevel         string `toml:"log_level"`
	LogFormat        string `toml:"log_format"`
	LogRetentionDays int    `toml:"log_retention_days"`

	// Notifications.
	NtfyTopic          string `toml:"ntfy_topic"`
	NtfyRequestTimeout int    `toml:"ntfy_request_timeout"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vodstitch/config.toml")
}

// Load locates, parses, and finalizes a configuration file. Environment
// overrides are applied after the file so container platforms can inject
// PORT and directory locations without editing TOML.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// Optional .env next to the working directory, useful in development.
	_ = godotenv.Load()

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

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv("PORT")); value != "" {
		if port, err := strconv.Atoi(value); err == nil {
			c.Port = port
		}
	}
	if value := strings.TrimSpace(os.Getenv("DOWNLOAD_DIR")); value != "" {
		c.DownloadDir = value
	}
	if value := strings.TrimSpace(os.Getenv("TD_TEMP_DIR")); value != "" {
		c.ScratchDir = value
	} else if value := strings.TrimSpace(os.Getenv("TMPDIR")); value != "" {
		c.ScratchDir = value
	}
	if value := strings.TrimSpace(os.Getenv("ADMIN_TOKEN")); value != "" {
		c.AdminToken = value
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("vodstitch.toml")
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

func (c *Config) normalize() error {
	for _, field := range []*string{&c.DownloadDir, &c.ScratchDir, &c.LogDir} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	c.AdminToken = strings.TrimSpace(c.AdminToken)
	c.TwitchDownloaderBinary = strings.TrimSpace(c.TwitchDownloaderBinary)
	c.FFmpegBinary = strings.TrimSpace(c.FFmpegBinary)
	c.FFprobeBinary = strings.TrimSpace(c.FFprobeBinary)

	cleaned := make([]string, 0, len(c.QualityFallbacks))
	for _, quality := range c.QualityFallbacks {
		if trimmed := strings.TrimSpace(quality); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	c.QualityFallbacks = cleaned
	return nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DownloadDir, c.ScratchDir, c.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ListenAddr returns the bind address for the HTTP API.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
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
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
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
