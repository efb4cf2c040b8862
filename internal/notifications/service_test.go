package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"vodstitch/internal/config"
	"vodstitch/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobCompleted(context.Background(), "123", "Example", ""); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "job queued",
			notify: func(svc notifications.Service) error {
				return svc.NotifyJobQueued(context.Background(), "123456", "A Great Run")
			},
			expectTitle:   "Vodstitch - Queued",
			expectMessage: "Queued: A Great Run (vod 123456)",
			expectTags:    "vodstitch,queue,added",
		},
		{
			name: "job queued without title",
			notify: func(svc notifications.Service) error {
				return svc.NotifyJobQueued(context.Background(), "123456", "")
			},
			expectTitle:   "Vodstitch - Queued",
			expectMessage: "Queued: VOD 123456 (vod 123456)",
			expectTags:    "vodstitch,queue,added",
		},
		{
			name: "download completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyDownloadCompleted(context.Background(), "123456")
			},
			expectTitle:   "Vodstitch - Downloaded",
			expectMessage: "Video download complete: vod 123456",
			expectTags:    "vodstitch,download,completed",
		},
		{
			name: "job completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyJobCompleted(context.Background(), "123456", "A Great Run", "/downloads/123456_combined.mp4")
			},
			expectTitle:    "Vodstitch - Complete",
			expectMessage:  "Ready to watch: A Great Run\nFile: /downloads/123456_combined.mp4",
			expectTags:     "vodstitch,workflow,completed",
			expectPriority: "high",
		},
		{
			name: "job failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyJobFailed(context.Background(), "123456", "videodownload exited 1")
			},
			expectTitle:    "Vodstitch - Failed",
			expectMessage:  "Job failed for vod 123456: videodownload exited 1",
			expectTags:     "vodstitch,error,failed",
			expectPriority: "high",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("disk full"), "eviction")
			},
			expectTitle:    "Vodstitch - Error",
			expectMessage:  "Error with eviction: disk full",
			expectTags:     "vodstitch,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.NtfyTopic = server.URL
			cfg.NtfyRequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceReportsServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 5xx response")
	}
}
