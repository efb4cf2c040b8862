package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vodstitch/internal/chatrender"
	"vodstitch/internal/composer"
	"vodstitch/internal/config"
	"vodstitch/internal/daemon"
	"vodstitch/internal/downloader"
	"vodstitch/internal/ipc"
	"vodstitch/internal/logging"
	"vodstitch/internal/queue"
	"vodstitch/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the vodstitch daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logPath := filepath.Join(cfg.LogDir, fmt.Sprintf("vodstitch-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.LogRetentionDays,
		logging.RetentionTarget{Dir: cfg.LogDir, Pattern: "vodstitch-*.log", Exclude: []string{logPath}},
	)

	pidPath := filepath.Join(cfg.LogDir, "vodstitch.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	workflowManager := workflow.NewManager(cfg, store, logger)
	if err := registerStages(workflowManager, cfg, store, logger); err != nil {
		return err
	}

	d, err := daemon.New(cfg, store, logger, workflowManager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, ctx.socketPathFor(cfg), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("vodstitch daemon shutting down")
	return nil
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger) error {
	dl, err := downloader.NewDownloader(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("configure downloader: %w", err)
	}
	renderer, err := chatrender.NewRenderer(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("configure chat renderer: %w", err)
	}

	mgr.ConfigureStages(workflow.StageSet{
		Downloader:   dl,
		ChatRenderer: renderer,
		Composer:     composer.NewComposer(cfg, store, logger),
	})
	return nil
}

// socketPathFor prefers the --socket flag but defaults next to the log dir of
// the loaded config rather than re-resolving configuration.
func (c *commandContext) socketPathFor(cfg *config.Config) string {
	if c.socketFlag != nil {
		if socket := *c.socketFlag; socket != "" {
			return socket
		}
	}
	return filepath.Join(cfg.LogDir, "vodstitch.sock")
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
