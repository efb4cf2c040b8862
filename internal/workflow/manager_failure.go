package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"vodstitch/internal/logging"
	"vodstitch/internal/queue"
	"vodstitch/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, job *queue.Job, stageErr error) {
	logger := logging.WithContext(ctx, m.logger)

	if errors.Is(stageErr, services.ErrCancelled) {
		m.failCancelled(ctx, logger, job)
		return
	}

	message := classifyStageFailure(stageName, stageErr)
	job.SetFailed(message)
	job.Hint = m.hintForJob(ctx, job)

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorHint, job.Hint),
		logging.String(logging.FieldEventType, "stage_failure"),
	)

	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastJob(job)
	if m.notifier != nil {
		if err := m.notifier.NotifyJobFailed(ctx, job.VodID, message); err != nil {
			logger.Warn("failure notification failed", logging.Error(err))
		}
	}
	m.enforceRetention(ctx, logger)
}

func (m *Manager) failCancelled(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	job.SetFailed(queue.CancelledMessage)
	job.Hint = ""
	logger.Info("job cancelled",
		logging.String(logging.FieldVodID, job.VodID),
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
	if err := m.store.Update(ctx, job); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("failed to persist cancellation", logging.Error(err))
	}
	m.setLastJob(job)
}

// hintForJob rereads the job log from the store so hints consider every line
// the external tools emitted, not just the in-memory snapshot.
func (m *Manager) hintForJob(ctx context.Context, job *queue.Job) string {
	current, err := m.store.GetByID(ctx, job.ID)
	if err != nil || current == nil {
		return services.HintFromLog(job.LogText)
	}
	return services.HintFromLog(current.LogText)
}

func classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		if stageName != "" {
			return stageName + " failed without error detail"
		}
		return "workflow failed without error detail"
	}
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = stageName + " failed"
	}
	return message
}
