package api

import (
	"context"
	"fmt"
	"log/slog"

	"vodstitch/internal/logging"
	"vodstitch/internal/notifications"
	"vodstitch/internal/queue"
	"vodstitch/internal/services"
)

// JobStore abstracts queue persistence interactions needed by the job service.
type JobStore interface {
	Enqueue(ctx context.Context, vodID string, params queue.Params) (*queue.Job, error)
	GetByKey(ctx context.Context, key string) (*queue.Job, error)
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	RequestCancel(ctx context.Context, id int64) error
	Remove(ctx context.Context, id int64) (bool, error)
	RetryFailed(ctx context.Context, ids ...int64) (int64, error)
}

// JobService exposes the job lifecycle operations behind the HTTP and IPC
// surfaces.
type JobService struct {
	store    JobStore
	notifier notifications.Service
	logger   *slog.Logger
}

// NewJobService constructs a JobService around the provided store.
func NewJobService(store JobStore, notifier notifications.Service, logger *slog.Logger) *JobService {
	return &JobService{
		store:    store,
		notifier: notifier,
		logger:   logging.WithComponent(logger, "job-service"),
	}
}

// Create validates the request and queues a new job.
func (s *JobService) Create(ctx context.Context, req CreateJobRequest) (Job, error) {
	vodID, params, err := req.Validate()
	if err != nil {
		return Job{}, err
	}
	job, err := s.store.Enqueue(ctx, vodID, params)
	if err != nil {
		return Job{}, err
	}
	s.logger.Info("job queued",
		logging.String(logging.FieldVodID, vodID),
		logging.String("job_key", job.Key),
		logging.String("quality", params.Quality),
		logging.Bool("include_chat", params.IncludeChat),
	)
	if s.notifier != nil {
		if err := s.notifier.NotifyJobQueued(ctx, vodID, job.Title); err != nil {
			s.logger.Warn("queue notification failed", logging.Error(err))
		}
	}
	return FromJob(job), nil
}

// List returns every known job, newest first.
func (s *JobService) List(ctx context.Context) ([]JobSummary, error) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Describe fetches a single job by its key, including the captured log.
func (s *JobService) Describe(ctx context.Context, key string) (JobDetail, error) {
	job, err := s.lookup(ctx, key)
	if err != nil {
		return JobDetail{}, err
	}
	return FromJobDetail(job), nil
}

// FilePath returns the final output path for a completed job.
func (s *JobService) FilePath(ctx context.Context, key string) (string, error) {
	job, err := s.lookup(ctx, key)
	if err != nil {
		return "", err
	}
	if job.Status != queue.StatusCompleted {
		return "", fmt.Errorf("%w: not ready", services.ErrConflict)
	}
	if job.FinalFile == "" {
		return "", fmt.Errorf("%w: file expired or missing", services.ErrGone)
	}
	return job.FinalFile, nil
}

// Cancel flags a job for cancellation.
func (s *JobService) Cancel(ctx context.Context, key string) error {
	job, err := s.lookup(ctx, key)
	if err != nil {
		return err
	}
	if err := s.store.RequestCancel(ctx, job.ID); err != nil {
		return err
	}
	s.logger.Info("job cancel requested",
		logging.String(logging.FieldVodID, job.VodID),
		logging.String("job_key", job.Key),
	)
	return nil
}

// Delete removes a job and its artifacts.
func (s *JobService) Delete(ctx context.Context, key string) error {
	job, err := s.lookup(ctx, key)
	if err != nil {
		return err
	}
	if _, err := s.store.Remove(ctx, job.ID); err != nil {
		return err
	}
	s.logger.Info("job deleted",
		logging.String(logging.FieldVodID, job.VodID),
		logging.String("job_key", job.Key),
	)
	return nil
}

// Retry resets failed jobs back to pending; without ids every failed job is retried.
func (s *JobService) Retry(ctx context.Context, ids ...int64) (int64, error) {
	return s.store.RetryFailed(ctx, ids...)
}

// Stats returns queue summary counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

func (s *JobService) lookup(ctx context.Context, key string) (*queue.Job, error) {
	job, err := s.store.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job not found", services.ErrNotFound)
	}
	return job, nil
}
