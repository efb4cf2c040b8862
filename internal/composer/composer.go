// Package composer implements the final stage: it stitches the VOD video and
// the rendered chat strip side by side with ffmpeg, or promotes the bare
// video when chat was disabled, then cleans up intermediates.
package composer

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"vodstitch/internal/config"
	"vodstitch/internal/logging"
	"vodstitch/internal/media/ffprobe"
	"vodstitch/internal/notifications"
	"vodstitch/internal/queue"
	"vodstitch/internal/services"
	"vodstitch/internal/services/twitchdl"
	"vodstitch/internal/stage"
)

const videoPanelWidth = 1920

var composerProbe = ffprobe.Inspect

// SetProbeForTests swaps the ffprobe invocation and returns a restore func.
func SetProbeForTests(probe func(ctx context.Context, binary, path string) (ffprobe.Result, error)) func() {
	previous := composerProbe
	composerProbe = probe
	return func() {
		composerProbe = previous
	}
}

// Composer produces the final combined output file.
type Composer struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	exec     twitchdl.Executor
	notifier notifications.Service
}

// NewComposer constructs the combine stage handler using default dependencies.
func NewComposer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Composer {
	return NewComposerWithDependencies(cfg, store, logger, twitchdl.NewCommandExecutor(), notifications.NewService(cfg))
}

// NewComposerWithDependencies allows injecting collaborators (used in tests).
func NewComposerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, exec twitchdl.Executor, notifier notifications.Service) *Composer {
	return &Composer{
		store:    store,
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "composer"),
		exec:     exec,
		notifier: notifier,
	}
}

func (c *Composer) Prepare(ctx context.Context, job *queue.Job) error {
	if job.VideoFile == "" {
		return services.Wrap(services.ErrValidation, "combining", "validate inputs", "no downloaded video present for combine", nil)
	}
	job.SetProgress("Combining", "Preparing final output", 0)
	job.ErrorMessage = ""
	return nil
}

func (c *Composer) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, c.logger)
	params, err := job.Params()
	if err != nil {
		return services.Wrap(services.ErrValidation, "combining", "load params", "job has no usable parameters", err)
	}
	if job.FinalFile == "" {
		return services.Wrap(services.ErrValidation, "combining", "validate inputs", "no final path prepared", nil)
	}
	if _, err := os.Stat(job.VideoFile); err != nil {
		return services.Wrap(services.ErrValidation, "combining", "validate inputs", "downloaded video is missing", err)
	}

	withChat := params.IncludeChat && strings.TrimSpace(job.ChatVideoFile) != ""
	if withChat {
		if _, err := os.Stat(job.ChatVideoFile); err != nil {
			return services.Wrap(services.ErrValidation, "combining", "validate inputs", "rendered chat video is missing", err)
		}
		if err := c.combine(ctx, job, params); err != nil {
			return err
		}
	} else {
		if err := os.Rename(job.VideoFile, job.FinalFile); err != nil {
			return services.Wrap(services.ErrTransient, "combining", "promote video", "could not move video to final path", err)
		}
		job.VideoFile = job.FinalFile
	}

	if err := c.validateFinal(ctx, job.FinalFile); err != nil {
		return err
	}

	c.cleanupIntermediates(job, logger)

	now := time.Now().UTC()
	job.Status = queue.StatusCompleted
	job.FinishedAt = &now
	job.SetProgress("Completed", "Final file ready", 100)
	logger.Info("combine complete",
		logging.String(logging.FieldVodID, job.VodID),
		logging.String("final_file", job.FinalFile),
		logging.Bool("with_chat", withChat),
	)
	if c.notifier != nil {
		if err := c.notifier.NotifyJobCompleted(ctx, job.VodID, job.Title, job.FinalFile); err != nil {
			logger.Warn("completion notification failed", logging.Error(err))
		}
	}
	return nil
}

func (c *Composer) combine(ctx context.Context, job *queue.Job, params queue.Params) error {
	logger := logging.WithContext(ctx, c.logger)
	runCtx, cancelled, stop := stage.WatchCancel(ctx, c.store, job.ID)
	defer stop()

	if err := c.store.AppendLog(ctx, job.ID, "", "=== Combine (Video + Chat) ==="); err != nil {
		logger.Warn("append log failed", logging.Error(err))
	}

	args := CombineArgs(job.VideoFile, job.ChatVideoFile, job.FinalFile, params.ChatWidth, params.ChatHeight)
	sink := func(line string) {
		if err := c.store.AppendLog(ctx, job.ID, line); err != nil {
			logger.Debug("append log failed", logging.Error(err))
		}
	}

	err := c.exec.Run(runCtx, c.cfg.FFmpegBinary, args, sink)
	if cancelled() {
		return services.Wrap(services.ErrCancelled, "combining", "ffmpeg", queue.CancelledMessage, nil)
	}
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "combining", "ffmpeg", "combine failed", err)
	}
	return nil
}

func (c *Composer) validateFinal(ctx context.Context, path string) error {
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "combining", "validate output", "final file missing or empty", err)
	}
	binary := strings.TrimSpace(c.cfg.FFprobeBinary)
	if binary == "" {
		return nil
	}
	result, err := composerProbe(ctx, binary, path)
	if err != nil {
		// Probe failures should not fail an otherwise produced file.
		logging.WithContext(ctx, c.logger).Warn("ffprobe validation skipped", logging.Error(err))
		return nil
	}
	if err := result.ValidatePlayable(); err != nil {
		return services.Wrap(services.ErrExternalTool, "combining", "validate output", "final file is not playable", err)
	}
	return nil
}

func (c *Composer) cleanupIntermediates(job *queue.Job, logger *slog.Logger) {
	for _, path := range job.IntermediatePaths() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Debug("intermediate cleanup failed", logging.String("path", path), logging.Error(err))
		}
	}
	job.VideoFile = ""
	job.ChatJSONFile = ""
	job.ChatVideoFile = ""
}

func (c *Composer) HealthCheck(ctx context.Context) stage.Health {
	const name = "composer"
	if strings.TrimSpace(c.cfg.FFmpegBinary) == "" {
		return stage.Unhealthy(name, "ffmpeg binary not configured")
	}
	if strings.TrimSpace(c.cfg.DownloadDir) == "" {
		return stage.Unhealthy(name, "download directory not configured")
	}
	return stage.Healthy(name)
}

// CombineArgs builds the ffmpeg argument list that scales the video to a
// 1920-wide panel, pads both inputs to the target height, and stacks the
// chat strip on the right. Audio is taken from the video input when present.
func CombineArgs(videoPath, chatPath, outPath string, chatWidth, height int) []string {
	heightArg := strconv.Itoa(height)
	widthArg := strconv.Itoa(videoPanelWidth)
	chatWidthArg := strconv.Itoa(chatWidth)

	video := ffmpeg.Input(videoPath).
		Filter("scale", ffmpeg.Args{widthArg, heightArg}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease"}).
		Filter("pad", ffmpeg.Args{widthArg, heightArg, "(ow-iw)/2", "(oh-ih)/2"})
	chat := ffmpeg.Input(chatPath).
		Filter("scale", ffmpeg.Args{chatWidthArg, heightArg}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease"}).
		Filter("pad", ffmpeg.Args{chatWidthArg, heightArg, "(ow-iw)/2", "(oh-ih)/2"})
	stacked := ffmpeg.Filter([]*ffmpeg.Stream{video, chat}, "hstack", ffmpeg.Args{}, ffmpeg.KwArgs{"inputs": 2})

	return stacked.Output(outPath, ffmpeg.KwArgs{
		"map":      "0:a?",
		"c:v":      "libx264",
		"preset":   "veryfast",
		"crf":      "18",
		"c:a":      "aac",
		"b:a":      "160k",
		"movflags": "+faststart",
	}).OverWriteOutput().GetArgs()
}
