// Package downloader implements the video download stage. It drives
// TwitchDownloaderCLI videodownload with quality fallback and streams tool
// output into the job log.
package downloader

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
	"vodstitch/internal/notifications"
	"vodstitch/internal/queue"
	"vodstitch/internal/services"
	"vodstitch/internal/services/twitchdl"
	"vodstitch/internal/stage"
)

// Downloader fetches the VOD video stream.
type Downloader struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	client   *twitchdl.Client
	notifier notifications.Service
}

// NewDownloader constructs the download stage handler using default dependencies.
func NewDownloader(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Downloader, error) {
	client, err := twitchdl.New(cfg.TwitchDownloaderBinary, cfg.ScratchDir, twitchdl.WithStageTimeout(time.Duration(cfg.StageTimeout)*time.Second))
	if err != nil {
		return nil, fmt.Errorf("downloader: %w", err)
	}
	return NewDownloaderWithDependencies(cfg, store, logger, client, notifications.NewService(cfg)), nil
}

// NewDownloaderWithDependencies allows injecting collaborators (used in tests).
func NewDownloaderWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *twitchdl.Client, notifier notifications.Service) *Downloader {
	return &Downloader{
		store:    store,
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "downloader"),
		client:   client,
		notifier: notifier,
	}
}

func (d *Downloader) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, d.logger)
	if job.VideoFile == "" {
		job.VideoFile = filepath.Join(d.cfg.DownloadDir, fmt.Sprintf("%s-%s.video.mp4", job.VodID, job.Key))
	}
	if job.FinalFile == "" {
		job.FinalFile = filepath.Join(d.cfg.DownloadDir, fmt.Sprintf("%s-%s.final.mp4", job.VodID, job.Key))
	}
	job.SetProgress("Downloading", "Preparing video download", 0)
	job.ErrorMessage = ""
	logger.Info("starting download preparation",
		logging.String(logging.FieldVodID, job.VodID),
		logging.String("video_file", job.VideoFile),
	)
	return nil
}

func (d *Downloader) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, d.logger)
	params, err := job.Params()
	if err != nil {
		return services.Wrap(services.ErrValidation, "downloading", "load params", "job has no usable parameters", err)
	}
	if job.VideoFile == "" {
		return services.Wrap(services.ErrValidation, "downloading", "validate inputs", "no video path prepared for download", nil)
	}

	runCtx, cancelled, stop := stage.WatchCancel(ctx, d.store, job.ID)
	defer stop()

	if err := d.store.AppendLog(ctx, job.ID, "", "=== VideoDownload ==="); err != nil {
		logger.Warn("append log failed", logging.Error(err))
	}

	sink := func(line string) {
		if err := d.store.AppendLog(ctx, job.ID, line); err != nil {
			logger.Debug("append log failed", logging.Error(err))
		}
	}
	progress := func(update twitchdl.ProgressUpdate) {
		job.SetProgress("Downloading", update.Message, update.Percent)
		if err := d.store.Update(ctx, job); err != nil {
			logger.Debug("persist progress failed", logging.Error(err))
		}
	}

	opts := twitchdl.VideoOptions{
		VodID:        job.VodID,
		OutputPath:   job.VideoFile,
		Quality:      params.Quality,
		Threads:      params.Threads,
		BandwidthKiB: params.BandwidthKiB,
		Beginning:    params.Beginning,
		Ending:       params.Ending,
	}
	quality, err := d.client.VideoDownloadWithFallback(runCtx, opts, d.cfg.QualityFallbacks, sink, progress)
	if cancelled() {
		return services.Wrap(services.ErrCancelled, "downloading", "videodownload", queue.CancelledMessage, nil)
	}
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "downloading", "videodownload", "video download failed", err)
	}
	if info, statErr := os.Stat(job.VideoFile); statErr != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "downloading", "validate output", "video file missing or empty after download", statErr)
	}

	if !strings.EqualFold(quality, strings.TrimSpace(params.Quality)) && strings.TrimSpace(params.Quality) != "" {
		sink(fmt.Sprintf("downloaded at %s after fallback", quality))
	}

	job.Status = queue.StatusDownloaded
	job.SetProgress("Downloading", fmt.Sprintf("Video downloaded at %s", quality), 100)
	logger.Info("video download complete",
		logging.String(logging.FieldVodID, job.VodID),
		logging.String("quality", quality),
		logging.String("video_file", job.VideoFile),
	)
	if d.notifier != nil {
		if err := d.notifier.NotifyDownloadCompleted(ctx, job.VodID); err != nil {
			logger.Warn("download notification failed", logging.Error(err))
		}
	}
	return nil
}

func (d *Downloader) HealthCheck(ctx context.Context) stage.Health {
	const name = "downloader"
	if d.client == nil {
		return stage.Unhealthy(name, "TwitchDownloaderCLI client not configured")
	}
	if strings.TrimSpace(d.cfg.DownloadDir) == "" {
		return stage.Unhealthy(name, "download directory not configured")
	}
	if _, err := os.Stat(d.cfg.DownloadDir); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("download directory unavailable: %v", err))
	}
	return stage.Healthy(name)
}
