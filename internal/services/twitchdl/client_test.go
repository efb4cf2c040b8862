package twitchdl

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeExecutor struct {
	calls    [][]string
	lines    []string
	failures map[string]error
}

func (f *fakeExecutor) Run(_ context.Context, _ string, args []string, onLine func(string)) error {
	f.calls = append(f.calls, append([]string(nil), args...))
	for _, line := range f.lines {
		if onLine != nil {
			onLine(line)
		}
	}
	if f.failures != nil {
		for marker, err := range f.failures {
			for i := 0; i < len(args)-1; i++ {
				if args[i] == "--quality" && args[i+1] == marker {
					return err
				}
			}
		}
	}
	return nil
}

func TestVideoDownloadArgs(t *testing.T) {
	exec := &fakeExecutor{}
	client, err := New("TwitchDownloaderCLI", "/scratch", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	opts := VideoOptions{
		VodID:        "123456",
		OutputPath:   "/out/123456.mp4",
		Quality:      "1080p60",
		Threads:      3,
		BandwidthKiB: 5000,
		Beginning:    "0:10:00",
		Ending:       "1:00:00",
	}
	if err := client.VideoDownload(context.Background(), opts, nil, nil); err != nil {
		t.Fatalf("VideoDownload: %v", err)
	}
	want := []string{
		"videodownload", "--id", "123456", "-o", "/out/123456.mp4",
		"--quality", "1080p60", "--threads", "3", "--bandwidth", "5000",
		"--beginning", "0:10:00", "--ending", "1:00:00",
		"--temp-path", "/scratch",
	}
	if got := strings.Join(exec.calls[0], " "); got != strings.Join(want, " ") {
		t.Fatalf("unexpected args:\n got %s\nwant %s", got, strings.Join(want, " "))
	}
}

func TestVideoDownloadOmitsQualityForBest(t *testing.T) {
	exec := &fakeExecutor{}
	client, err := New("TwitchDownloaderCLI", "/scratch", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	opts := VideoOptions{VodID: "1", OutputPath: "/out/1.mp4", Quality: "best", Threads: 1}
	if err := client.VideoDownload(context.Background(), opts, nil, nil); err != nil {
		t.Fatalf("VideoDownload: %v", err)
	}
	for _, arg := range exec.calls[0] {
		if arg == "--quality" {
			t.Fatal("best quality should omit --quality flag")
		}
	}
}

func TestChatDownloadArgs(t *testing.T) {
	exec := &fakeExecutor{}
	client, err := New("TwitchDownloaderCLI", "/scratch", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	opts := ChatDownloadOptions{VodID: "987", OutputPath: "/out/987.chat.json.gz", Threads: 2, Beginning: "0:00:05"}
	if err := client.ChatDownload(context.Background(), opts, nil, nil); err != nil {
		t.Fatalf("ChatDownload: %v", err)
	}
	joined := strings.Join(exec.calls[0], " ")
	for _, fragment := range []string{
		"chatdownload --id 987",
		"--compression Gzip",
		"-E",
		"--threads 2",
		"--temp-path /scratch",
		"--beginning 0:00:05",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("missing %q in args %s", fragment, joined)
		}
	}
}

func TestChatRenderArgs(t *testing.T) {
	exec := &fakeExecutor{}
	client, err := New("TwitchDownloaderCLI", "/scratch", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	opts := ChatRenderOptions{
		InputPath:       "/out/987.chat.json.gz",
		OutputPath:      "/out/987.chat.mp4",
		Width:           422,
		Height:          1080,
		FontSize:        18,
		Framerate:       30,
		UpdateRate:      0.2,
		BackgroundColor: "#111111",
		Outline:         true,
	}
	if err := client.ChatRender(context.Background(), opts, nil, nil); err != nil {
		t.Fatalf("ChatRender: %v", err)
	}
	joined := strings.Join(exec.calls[0], " ")
	for _, fragment := range []string{
		"-w 422", "-h 1080", "--font-size 18", "--framerate 30",
		"--update-rate 0.2", "--background-color #111111",
		"--readable-colors true", "--outline",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("missing %q in args %s", fragment, joined)
		}
	}
}

func TestVideoDownloadFallback(t *testing.T) {
	exec := &fakeExecutor{failures: map[string]error{
		"1080p60": errors.New("unable to find requested quality"),
		"1080p":   errors.New("unable to find requested quality"),
	}}
	client, err := New("TwitchDownloaderCLI", "/scratch", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	opts := VideoOptions{VodID: "42", OutputPath: "/out/42.mp4", Threads: 1}
	quality, err := client.VideoDownloadWithFallback(context.Background(), opts, []string{"1080p60", "1080p", "best"}, nil, nil)
	if err != nil {
		t.Fatalf("VideoDownloadWithFallback: %v", err)
	}
	if quality != "best" {
		t.Fatalf("expected fallback to best, got %s", quality)
	}
	if len(exec.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(exec.calls))
	}
}

func TestVideoDownloadFallbackAllFail(t *testing.T) {
	boom := errors.New("stream offline")
	exec := &fakeExecutor{failures: map[string]error{
		"720p60": boom,
		"720p":   boom,
	}}
	client, err := New("TwitchDownloaderCLI", "/scratch", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	opts := VideoOptions{VodID: "42", OutputPath: "/out/42.mp4", Threads: 1}
	_, err = client.VideoDownloadWithFallback(context.Background(), opts, []string{"720p60", "720p"}, nil, nil)
	if err == nil {
		t.Fatal("expected error when all candidates fail")
	}
	if !strings.Contains(err.Error(), "720p60") || !strings.Contains(err.Error(), "stream offline") {
		t.Fatalf("joined error missing attempt details: %v", err)
	}
}

func TestVideoDownloadFallbackPrefersRequestedQuality(t *testing.T) {
	exec := &fakeExecutor{}
	client, err := New("TwitchDownloaderCLI", "/scratch", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	opts := VideoOptions{VodID: "7", OutputPath: "/out/7.mp4", Quality: "720p", Threads: 1}
	quality, err := client.VideoDownloadWithFallback(context.Background(), opts, []string{"1080p60", "best"}, nil, nil)
	if err != nil {
		t.Fatalf("VideoDownloadWithFallback: %v", err)
	}
	if quality != "720p" {
		t.Fatalf("expected requested quality first, got %s", quality)
	}
}

func TestParseProgress(t *testing.T) {
	cases := []struct {
		line    string
		ok      bool
		stage   string
		percent float64
	}{
		{"[STATUS] - Downloading 42%", true, "downloading", 42},
		{"Rendering Video 13%", true, "rendering", 13},
		{"Finalizing Video 99%", true, "finalizing", 99},
		{"combining 7%", true, "combining", 7},
		{"no percent here", false, "", 0},
		{"", false, "", 0},
	}
	for _, tc := range cases {
		update, ok := parseProgress(tc.line)
		if ok != tc.ok {
			t.Fatalf("parseProgress(%q) ok=%v want %v", tc.line, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if update.Stage != tc.stage || update.Percent != tc.percent {
			t.Fatalf("parseProgress(%q) = %+v", tc.line, update)
		}
	}
}

func TestReadChatMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.json.gz")

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(`{"streamer":{"name":"somestreamer"},"video":{"title":"A Great Run"}}`)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	meta, err := ReadChatMetadata(path)
	if err != nil {
		t.Fatalf("ReadChatMetadata: %v", err)
	}
	if meta.Streamer != "somestreamer" {
		t.Fatalf("streamer = %q", meta.Streamer)
	}
	if meta.Title != "A Great Run" {
		t.Fatalf("title = %q", meta.Title)
	}
	if label := StreamerLabel(meta.Streamer); label != "Somestreamer" {
		t.Fatalf("label = %q", label)
	}
}

func TestReadChatMetadataInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.json.gz")
	if err := os.WriteFile(path, []byte("not gzip"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := ReadChatMetadata(path); err == nil {
		t.Fatal("expected error for non-gzip input")
	}
}
