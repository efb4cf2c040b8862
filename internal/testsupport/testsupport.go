// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"vodstitch/internal/config"
	"vodstitch/internal/queue"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.DownloadDir = filepath.Join(base, "downloads")
	cfg.ScratchDir = filepath.Join(base, "tmp")
	cfg.LogDir = filepath.Join(base, "logs")
	cfg.Port = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithBacklog overrides the queue backlog limit on the test config.
func WithBacklog(limit int) ConfigOption {
	return func(c *config.Config) {
		c.MaxBacklog = limit
	}
}

// WithLogLineCap overrides the captured-log line cap on the test config.
func WithLogLineCap(limit int) ConfigOption {
	return func(c *config.Config) {
		c.LogLineCap = limit
	}
}

// MustOpenStore opens a queue store for the config and closes it with the test.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SampleParams returns job parameters matching the request defaults.
func SampleParams() queue.Params {
	return queue.Params{
		Quality:         "1080p60",
		Threads:         2,
		IncludeChat:     true,
		ChatWidth:       422,
		ChatHeight:      1080,
		FontSize:        18,
		Framerate:       30,
		UpdateRate:      0.2,
		BackgroundColor: "#111111",
	}
}

// WriteFile creates a file with the given content, failing the test on error.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create parent dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}
