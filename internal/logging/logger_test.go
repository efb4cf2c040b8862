package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vodstitch/internal/services"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"Verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "run.log")
	logger, err := New(Options{Level: "info", Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", String("k", "v"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log file missing entry: %s", data)
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newJSONHandler(&buf, new(slog.LevelVar)))
	logger.Warn("disk almost full", Int("free_mb", 12))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["msg"] != "disk almost full" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v", entry["level"])
	}
	ts, ok := entry["ts"].(string)
	if !ok {
		t.Fatalf("ts missing or not a string: %v", entry["ts"])
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("ts not RFC3339: %v", err)
	}
	if entry["free_mb"] != float64(12) {
		t.Errorf("free_mb = %v", entry["free_mb"])
	}
}

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, new(slog.LevelVar)))
	WithComponent(logger, "combine").Info("stage finished",
		String("output", "final.mp4"),
		String("detail", "took 3 minutes"),
		Bool("chat", true),
	)

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, " INFO combine: stage finished") {
		t.Fatalf("unexpected line layout: %s", line)
	}
	if !strings.Contains(line, "output=final.mp4") {
		t.Errorf("plain value should be unquoted: %s", line)
	}
	if !strings.Contains(line, `detail="took 3 minutes"`) {
		t.Errorf("spaced value should be quoted: %s", line)
	}
	if !strings.Contains(line, "chat=true") {
		t.Errorf("bool formatting wrong: %s", line)
	}
}

func TestConsoleHandlerLevelGate(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "WARN kept") {
		t.Errorf("warn line should pass: %s", out)
	}
}

func TestErrorAttr(t *testing.T) {
	attr := Error(errors.New("bad thing"))
	if attr.Key != "error" {
		t.Errorf("key = %s", attr.Key)
	}
	if got := formatValue(attr.Value); got != `"bad thing"` {
		t.Errorf("formatValue = %s", got)
	}
	if got := formatValue(Error(nil).Value); got != "<nil>" {
		t.Errorf("nil error = %s", got)
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, new(slog.LevelVar)))

	ctx := services.WithJobID(context.Background(), 42)
	ctx = services.WithStage(ctx, "videodownload")

	WithContext(ctx, logger).Info("progress")

	line := buf.String()
	if !strings.Contains(line, "job_id=42") {
		t.Errorf("missing job id: %s", line)
	}
	if !strings.Contains(line, "stage=videodownload") {
		t.Errorf("missing stage: %s", line)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "vodstitch-old.log")
	fresh := filepath.Join(dir, "vodstitch-new.log")
	keep := filepath.Join(dir, "vodstitch-current.log")
	other := filepath.Join(dir, "unrelated.txt")

	for _, path := range []string{old, fresh, keep, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().Add(-10 * 24 * time.Hour)
	for _, path := range []string{old, keep, other} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("age %s: %v", path, err)
		}
	}

	CleanupOldLogs(NewNop(), 7, RetentionTarget{
		Dir:     dir,
		Pattern: "vodstitch-*.log",
		Exclude: []string{keep},
	})

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale log should be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh log should survive")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("excluded log should survive")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-matching file should survive")
	}

	// Nonpositive retention is a no-op even with stale files present.
	CleanupOldLogs(NewNop(), 0, RetentionTarget{Dir: dir, Pattern: "*.txt"})
	if _, err := os.Stat(other); err != nil {
		t.Error("retention disabled, file should survive")
	}
}
