package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vodstitch/internal/config"
	"vodstitch/internal/logging"
	"vodstitch/internal/notifications"
	"vodstitch/internal/queue"
	"vodstitch/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Downloader   stage.Handler
	ChatRenderer stage.Handler
	Composer     stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service

	heartbeat *HeartbeatMonitor

	stages       []pipelineStage
	stageByStart map[queue.Status]pipelineStage
	statusOrder  []queue.Status

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.WithComponent(logger, "workflow-manager"),
		notifier:     notifier,
		pollInterval: time.Duration(cfg.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.HeartbeatInterval)*time.Second,
			time.Duration(cfg.HeartbeatTimeout)*time.Second,
		),
	}
}

// ConfigureStages registers the pipeline handlers in processing order.
func (m *Manager) ConfigureStages(stages StageSet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stages = []pipelineStage{
		{
			name:             "download",
			handler:          stages.Downloader,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusDownloading,
			doneStatus:       queue.StatusDownloaded,
		},
		{
			name:             "chat",
			handler:          stages.ChatRenderer,
			startStatus:      queue.StatusDownloaded,
			processingStatus: queue.StatusChatRendering,
			doneStatus:       queue.StatusChatRendered,
		},
		{
			name:             "combine",
			handler:          stages.Composer,
			startStatus:      queue.StatusChatRendered,
			processingStatus: queue.StatusCombining,
			doneStatus:       queue.StatusCompleted,
		},
	}
	m.stageByStart = make(map[queue.Status]pipelineStage, len(m.stages))
	m.statusOrder = make([]queue.Status, 0, len(m.stages))
	for _, stg := range m.stages {
		m.stageByStart[stg.startStatus] = stg
		m.statusOrder = append(m.statusOrder, stg.startStatus)
	}
}

func deriveStageLabel(status queue.Status) string {
	switch status {
	case queue.StatusDownloading:
		return "Downloading"
	case queue.StatusChatRendering:
		return "Rendering chat"
	case queue.StatusCombining:
		return "Combining"
	case queue.StatusCompleted:
		return "Completed"
	case queue.StatusFailed:
		return "Failed"
	default:
		return "Queued"
	}
}
