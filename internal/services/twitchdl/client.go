package twitchdl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProgressUpdate captures TwitchDownloaderCLI progress output.
type ProgressUpdate struct {
	Stage   string
	Percent float64
	Message string
}

// VideoOptions parameterize a videodownload invocation.
type VideoOptions struct {
	VodID        string
	OutputPath   string
	Quality      string
	Threads      int
	BandwidthKiB int
	Beginning    string
	Ending       string
}

// ChatDownloadOptions parameterize a chatdownload invocation.
type ChatDownloadOptions struct {
	VodID      string
	OutputPath string
	Threads    int
	Beginning  string
	Ending     string
}

// ChatRenderOptions parameterize a chatrender invocation.
type ChatRenderOptions struct {
	InputPath       string
	OutputPath      string
	Width           int
	Height          int
	FontSize        int
	Framerate       int
	UpdateRate      float64
	BackgroundColor string
	Outline         bool
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithStageTimeout bounds individual CLI invocations; zero disables.
func WithStageTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client wraps TwitchDownloaderCLI interactions.
type Client struct {
	binary     string
	scratchDir string
	timeout    time.Duration
	exec       Executor
}

// New constructs a TwitchDownloaderCLI client. The scratch directory is
// passed as --temp-path on every invocation so large intermediates never
// land on the platform default temp volume.
func New(binary, scratchDir string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("twitchdownloader binary required")
	}
	scratchDir = strings.TrimSpace(scratchDir)
	if scratchDir == "" {
		return nil, errors.New("scratch directory required")
	}
	client := &Client{
		binary:     binary,
		scratchDir: scratchDir,
		exec:       commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// VideoDownload downloads the VOD video stream at the given quality.
func (c *Client) VideoDownload(ctx context.Context, opts VideoOptions, sink func(string), progress func(ProgressUpdate)) error {
	if strings.TrimSpace(opts.VodID) == "" {
		return errors.New("vod id required")
	}
	if strings.TrimSpace(opts.OutputPath) == "" {
		return errors.New("output path required")
	}
	args := videoDownloadArgs(opts, c.scratchDir)
	if err := c.run(ctx, args, sink, progress); err != nil {
		return fmt.Errorf("videodownload: %w", err)
	}
	return nil
}

// VideoDownloadWithFallback tries each quality candidate in order and
// commits to the first that succeeds. All attempt errors are joined when
// every candidate fails.
func (c *Client) VideoDownloadWithFallback(ctx context.Context, opts VideoOptions, qualities []string, sink func(string), progress func(ProgressUpdate)) (string, error) {
	candidates := qualities
	if quality := strings.TrimSpace(opts.Quality); quality != "" {
		merged := make([]string, 0, len(qualities)+1)
		merged = append(merged, quality)
		for _, candidate := range qualities {
			if !strings.EqualFold(candidate, quality) {
				merged = append(merged, candidate)
			}
		}
		candidates = merged
	}
	if len(candidates) == 0 {
		return "", errors.New("no quality candidates")
	}

	var attemptErrs []error
	for _, quality := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		attempt := opts
		attempt.Quality = quality
		if sink != nil && len(candidates) > 1 {
			sink(fmt.Sprintf("trying quality %s", quality))
		}
		err := c.VideoDownload(ctx, attempt, sink, progress)
		if err == nil {
			return quality, nil
		}
		attemptErrs = append(attemptErrs, fmt.Errorf("quality %s: %w", quality, err))
	}
	return "", fmt.Errorf("all quality candidates failed: %w", errors.Join(attemptErrs...))
}

// ChatDownload fetches the chat replay as gzipped JSON with embedded images.
func (c *Client) ChatDownload(ctx context.Context, opts ChatDownloadOptions, sink func(string), progress func(ProgressUpdate)) error {
	if strings.TrimSpace(opts.VodID) == "" {
		return errors.New("vod id required")
	}
	if strings.TrimSpace(opts.OutputPath) == "" {
		return errors.New("output path required")
	}
	args := chatDownloadArgs(opts, c.scratchDir)
	if err := c.run(ctx, args, sink, progress); err != nil {
		return fmt.Errorf("chatdownload: %w", err)
	}
	return nil
}

// ChatRender rasterizes a downloaded chat replay to video.
func (c *Client) ChatRender(ctx context.Context, opts ChatRenderOptions, sink func(string), progress func(ProgressUpdate)) error {
	if strings.TrimSpace(opts.InputPath) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(opts.OutputPath) == "" {
		return errors.New("output path required")
	}
	args := chatRenderArgs(opts, c.scratchDir)
	if err := c.run(ctx, args, sink, progress); err != nil {
		return fmt.Errorf("chatrender: %w", err)
	}
	return nil
}

func (c *Client) run(ctx context.Context, args []string, sink func(string), progress func(ProgressUpdate)) error {
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.exec.Run(runCtx, c.binary, args, func(line string) {
		if sink != nil {
			sink(line)
		}
		if progress != nil {
			if update, ok := parseProgress(line); ok {
				progress(update)
			}
		}
	})
}

func videoDownloadArgs(opts VideoOptions, scratchDir string) []string {
	args := []string{"videodownload", "--id", opts.VodID, "-o", opts.OutputPath}
	if quality := strings.TrimSpace(opts.Quality); quality != "" && !strings.EqualFold(quality, "best") {
		args = append(args, "--quality", quality)
	}
	args = append(args, "--threads", strconv.Itoa(opts.Threads))
	if opts.BandwidthKiB > 0 {
		args = append(args, "--bandwidth", strconv.Itoa(opts.BandwidthKiB))
	}
	if opts.Beginning != "" {
		args = append(args, "--beginning", opts.Beginning)
	}
	if opts.Ending != "" {
		args = append(args, "--ending", opts.Ending)
	}
	args = append(args, "--temp-path", scratchDir)
	return args
}

func chatDownloadArgs(opts ChatDownloadOptions, scratchDir string) []string {
	args := []string{
		"chatdownload",
		"--id", opts.VodID,
		"-o", opts.OutputPath,
		"--compression", "Gzip",
		"-E",
		"--threads", strconv.Itoa(opts.Threads),
		"--temp-path", scratchDir,
	}
	if opts.Beginning != "" {
		args = append(args, "--beginning", opts.Beginning)
	}
	if opts.Ending != "" {
		args = append(args, "--ending", opts.Ending)
	}
	return args
}

func chatRenderArgs(opts ChatRenderOptions, scratchDir string) []string {
	args := []string{
		"chatrender",
		"-i", opts.InputPath,
		"-o", opts.OutputPath,
		"-w", strconv.Itoa(opts.Width),
		"-h", strconv.Itoa(opts.Height),
		"--font-size", strconv.Itoa(opts.FontSize),
		"--framerate", strconv.Itoa(opts.Framerate),
		"--update-rate", strconv.FormatFloat(opts.UpdateRate, 'f', -1, 64),
		"--background-color", opts.BackgroundColor,
		"--temp-path", scratchDir,
		"--readable-colors", "true",
	}
	if opts.Outline {
		args = append(args, "--outline")
	}
	return args
}
