// Package chatrender implements the chat stage: it downloads the chat replay
// and rasterizes it to a video strip. Jobs created without chat pass through
// untouched so the pipeline stays uniform.
package chatrender

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vodstitch/internal/config"
	"vodstitch/internal/logging"
	"vodstitch/internal/queue"
	"vodstitch/internal/services"
	"vodstitch/internal/services/twitchdl"
	"vodstitch/internal/stage"
)

// Renderer downloads and renders the chat replay.
type Renderer struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client *twitchdl.Client
}

// NewRenderer constructs the chat stage handler using default dependencies.
func NewRenderer(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Renderer, error) {
	client, err := twitchdl.New(cfg.TwitchDownloaderBinary, cfg.ScratchDir, twitchdl.WithStageTimeout(time.Duration(cfg.StageTimeout)*time.Second))
	if err != nil {
		return nil, fmt.Errorf("chatrender: %w", err)
	}
	return NewRendererWithDependencies(cfg, store, logger, client), nil
}

// NewRendererWithDependencies allows injecting collaborators (used in tests).
func NewRendererWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *twitchdl.Client) *Renderer {
	return &Renderer{
		store:  store,
		cfg:    cfg,
		logger: logging.WithComponent(logger, "chatrender"),
		client: client,
	}
}

func (r *Renderer) Prepare(ctx context.Context, job *queue.Job) error {
	params, err := job.Params()
	if err != nil {
		return services.Wrap(services.ErrValidation, "chat rendering", "load params", "job has no usable parameters", err)
	}
	if !params.IncludeChat {
		job.SetProgress("Chat", "Chat disabled, skipping", 100)
		return nil
	}
	if job.ChatJSONFile == "" {
		job.ChatJSONFile = filepath.Join(r.cfg.DownloadDir, fmt.Sprintf("%s-%s.chat.json.gz", job.VodID, job.Key))
	}
	if job.ChatVideoFile == "" {
		job.ChatVideoFile = filepath.Join(r.cfg.DownloadDir, fmt.Sprintf("%s-%s.chat.mp4", job.VodID, job.Key))
	}
	job.SetProgress("Chat", "Preparing chat download", 0)
	job.ErrorMessage = ""
	return nil
}

func (r *Renderer) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, r.logger)
	params, err := job.Params()
	if err != nil {
		return services.Wrap(services.ErrValidation, "chat rendering", "load params", "job has no usable parameters", err)
	}
	if !params.IncludeChat {
		job.Status = queue.StatusChatRendered
		logger.Info("chat disabled for job, passing through", logging.String(logging.FieldVodID, job.VodID))
		return nil
	}
	if job.ChatJSONFile == "" || job.ChatVideoFile == "" {
		return services.Wrap(services.ErrValidation, "chat rendering", "validate inputs", "no chat paths prepared", nil)
	}

	runCtx, cancelled, stop := stage.WatchCancel(ctx, r.store, job.ID)
	defer stop()

	sink := func(line string) {
		if err := r.store.AppendLog(ctx, job.ID, line); err != nil {
			logger.Debug("append log failed", logging.Error(err))
		}
	}

	if err := r.store.AppendLog(ctx, job.ID, "", "=== ChatDownload ==="); err != nil {
		logger.Warn("append log failed", logging.Error(err))
	}
	downloadOpts := twitchdl.ChatDownloadOptions{
		VodID:      job.VodID,
		OutputPath: job.ChatJSONFile,
		Threads:    params.Threads,
		Beginning:  params.Beginning,
		Ending:     params.Ending,
	}
	downloadProgress := func(update twitchdl.ProgressUpdate) {
		job.SetProgress("Chat download", update.Message, update.Percent)
		if err := r.store.Update(ctx, job); err != nil {
			logger.Debug("persist progress failed", logging.Error(err))
		}
	}
	err = r.client.ChatDownload(runCtx, downloadOpts, sink, downloadProgress)
	if cancelled() {
		return services.Wrap(services.ErrCancelled, "chat rendering", "chatdownload", queue.CancelledMessage, nil)
	}
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "chat rendering", "chatdownload", "chat download failed", err)
	}

	// The replay embeds streamer and VOD title, worth keeping for display.
	if meta, metaErr := twitchdl.ReadChatMetadata(job.ChatJSONFile); metaErr == nil {
		title := strings.TrimSpace(meta.Title)
		if streamer := twitchdl.StreamerLabel(meta.Streamer); streamer != "" {
			if title != "" {
				title = fmt.Sprintf("%s: %s", streamer, title)
			} else {
				title = streamer
			}
		}
		if title != "" {
			job.Title = title
		}
	} else {
		logger.Debug("chat metadata unavailable", logging.Error(metaErr))
	}

	if err := r.store.AppendLog(ctx, job.ID, "", "=== ChatRender ==="); err != nil {
		logger.Warn("append log failed", logging.Error(err))
	}
	renderOpts := twitchdl.ChatRenderOptions{
		InputPath:       job.ChatJSONFile,
		OutputPath:      job.ChatVideoFile,
		Width:           params.ChatWidth,
		Height:          params.ChatHeight,
		FontSize:        params.FontSize,
		Framerate:       params.Framerate,
		UpdateRate:      params.UpdateRate,
		BackgroundColor: params.BackgroundColor,
		Outline:         params.Outline,
	}
	renderProgress := func(update twitchdl.ProgressUpdate) {
		job.SetProgress("Chat render", update.Message, update.Percent)
		if err := r.store.Update(ctx, job); err != nil {
			logger.Debug("persist progress failed", logging.Error(err))
		}
	}
	err = r.client.ChatRender(runCtx, renderOpts, sink, renderProgress)
	if cancelled() {
		return services.Wrap(services.ErrCancelled, "chat rendering", "chatrender", queue.CancelledMessage, nil)
	}
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "chat rendering", "chatrender", "chat render failed", err)
	}
	if info, statErr := os.Stat(job.ChatVideoFile); statErr != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "chat rendering", "validate output", "chat video missing or empty after render", statErr)
	}

	job.Status = queue.StatusChatRendered
	job.SetProgress("Chat", "Chat rendered", 100)
	logger.Info("chat render complete",
		logging.String(logging.FieldVodID, job.VodID),
		logging.String("chat_video", job.ChatVideoFile),
	)
	return nil
}

func (r *Renderer) HealthCheck(ctx context.Context) stage.Health {
	const name = "chatrender"
	if r.client == nil {
		return stage.Unhealthy(name, "TwitchDownloaderCLI client not configured")
	}
	if strings.TrimSpace(r.cfg.ScratchDir) == "" {
		return stage.Unhealthy(name, "scratch directory not configured")
	}
	return stage.Healthy(name)
}
