package chatrender_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"vodstitch/internal/chatrender"
	"vodstitch/internal/logging"
	"vodstitch/internal/queue"
	"vodstitch/internal/services"
	"vodstitch/internal/services/twitchdl"
	"vodstitch/internal/testsupport"
)

// chatExecutor simulates chatdownload and chatrender by writing plausible
// output files for whichever subcommand it sees.
type chatExecutor struct {
	calls      [][]string
	failRender error
}

func (c *chatExecutor) Run(_ context.Context, _ string, args []string, onLine func(string)) error {
	c.calls = append(c.calls, append([]string(nil), args...))
	out := ""
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-o" {
			out = args[i+1]
		}
	}
	switch args[0] {
	case "chatdownload":
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(`{"streamer":{"name":"somestreamer"},"video":{"title":"Speedrun PB"}}`))
		_ = gz.Close()
		return os.WriteFile(out, buf.Bytes(), 0o644)
	case "chatrender":
		if c.failRender != nil {
			if onLine != nil {
				onLine("Couldn't find a valid ICU package installed on the system")
			}
			return c.failRender
		}
		return os.WriteFile(out, []byte("chat-video"), 0o644)
	default:
		return errors.New("unexpected subcommand " + args[0])
	}
}

func newRenderer(t *testing.T, exec twitchdl.Executor) (*chatrender.Renderer, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client, err := twitchdl.New(cfg.TwitchDownloaderBinary, cfg.ScratchDir, twitchdl.WithExecutor(exec))
	if err != nil {
		t.Fatalf("twitchdl.New: %v", err)
	}
	return chatrender.NewRendererWithDependencies(cfg, store, logging.NewNop(), client), store
}

func TestRendererDownloadsAndRendersChat(t *testing.T) {
	exec := &chatExecutor{}
	handler, store := newRenderer(t, exec)

	job, err := store.Enqueue(context.Background(), "123456", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job.Status = queue.StatusChatRendering
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if job.ChatJSONFile == "" || job.ChatVideoFile == "" {
		t.Fatal("Prepare should derive chat paths")
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.Status != queue.StatusChatRendered {
		t.Fatalf("status = %s", job.Status)
	}
	if _, err := os.Stat(job.ChatVideoFile); err != nil {
		t.Fatalf("chat video missing: %v", err)
	}
	if job.Title != "Somestreamer: Speedrun PB" {
		t.Fatalf("title = %q", job.Title)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("expected chatdownload then chatrender, got %d calls", len(exec.calls))
	}
	if exec.calls[0][0] != "chatdownload" || exec.calls[1][0] != "chatrender" {
		t.Fatalf("unexpected call order: %v", [2]string{exec.calls[0][0], exec.calls[1][0]})
	}

	updated, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	for _, header := range []string{"=== ChatDownload ===", "=== ChatRender ==="} {
		if !strings.Contains(updated.LogText, header) {
			t.Fatalf("log missing %q: %q", header, updated.LogText)
		}
	}
}

func TestRendererSkipsWhenChatDisabled(t *testing.T) {
	exec := &chatExecutor{}
	handler, store := newRenderer(t, exec)

	params := testsupport.SampleParams()
	params.IncludeChat = false
	job, err := store.Enqueue(context.Background(), "42", params)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if job.ChatJSONFile != "" || job.ChatVideoFile != "" {
		t.Fatal("no chat paths expected when chat disabled")
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.Status != queue.StatusChatRendered {
		t.Fatalf("status = %s", job.Status)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("expected no tool calls, got %d", len(exec.calls))
	}
}

func TestRendererRenderFailureSurfacedWithHint(t *testing.T) {
	exec := &chatExecutor{failRender: errors.New("exit status 134")}
	handler, store := newRenderer(t, exec)

	job, err := store.Enqueue(context.Background(), "7", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err = handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}

	updated, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if hint := services.HintFromLog(updated.LogText); !strings.Contains(hint, "missing ICU") {
		t.Fatalf("expected ICU hint, got %q", hint)
	}
}
