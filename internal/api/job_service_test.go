package api

import (
	"context"
	"errors"
	"testing"

	"vodstitch/internal/logging"
	"vodstitch/internal/queue"
	"vodstitch/internal/services"
)

type fakeStore struct {
	jobs      map[string]*queue.Job
	enqueued  []queue.Params
	cancelled []int64
	removed   []int64
	enqueueErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*queue.Job)}
}

func (f *fakeStore) Enqueue(ctx context.Context, vodID string, params queue.Params) (*queue.Job, error) {
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	f.enqueued = append(f.enqueued, params)
	job := &queue.Job{ID: int64(len(f.jobs) + 1), Key: "key-" + vodID, VodID: vodID, Status: queue.StatusPending}
	f.jobs[job.Key] = job
	return job, nil
}

func (f *fakeStore) GetByKey(ctx context.Context, key string) (*queue.Job, error) {
	return f.jobs[key], nil
}

func (f *fakeStore) List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	var out []*queue.Job
	for _, job := range f.jobs {
		out = append(out, job)
	}
	return out, nil
}

func (f *fakeStore) Stats(ctx context.Context) (map[queue.Status]int, error) {
	stats := make(map[queue.Status]int)
	for _, job := range f.jobs {
		stats[job.Status]++
	}
	return stats, nil
}

func (f *fakeStore) RequestCancel(ctx context.Context, id int64) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeStore) Remove(ctx context.Context, id int64) (bool, error) {
	f.removed = append(f.removed, id)
	for key, job := range f.jobs {
		if job.ID == id {
			delete(f.jobs, key)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	return int64(len(ids)), nil
}

type serviceNotifier struct {
	queued []string
}

func (n *serviceNotifier) NotifyJobQueued(ctx context.Context, vodID, title string) error {
	n.queued = append(n.queued, vodID)
	return nil
}

func (n *serviceNotifier) NotifyDownloadCompleted(ctx context.Context, vodID string) error {
	return nil
}

func (n *serviceNotifier) NotifyJobCompleted(ctx context.Context, vodID, title, finalFile string) error {
	return nil
}

func (n *serviceNotifier) NotifyJobFailed(ctx context.Context, vodID, reason string) error {
	return nil
}

func (n *serviceNotifier) NotifyError(ctx context.Context, err error, context string) error {
	return nil
}

func (n *serviceNotifier) TestNotification(ctx context.Context) error { return nil }

func TestCreateQueuesJobAndNotifies(t *testing.T) {
	store := newFakeStore()
	notifier := &serviceNotifier{}
	svc := NewJobService(store, notifier, logging.NewNop())

	job, err := svc.Create(context.Background(), CreateJobRequest{VodID: "123456", Quality: "720p"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Key != "key-123456" {
		t.Fatalf("job key = %q", job.Key)
	}
	if len(store.enqueued) != 1 || store.enqueued[0].Quality != "720p" {
		t.Fatalf("enqueue params = %+v", store.enqueued)
	}
	if len(notifier.queued) != 1 || notifier.queued[0] != "123456" {
		t.Fatalf("queue notification = %+v", notifier.queued)
	}
}

func TestCreateRejectsInvalidRequestWithoutEnqueue(t *testing.T) {
	store := newFakeStore()
	svc := NewJobService(store, &serviceNotifier{}, logging.NewNop())

	_, err := svc.Create(context.Background(), CreateJobRequest{VodID: "not-a-number"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.enqueued) != 0 {
		t.Fatal("invalid request must not reach the store")
	}
}

func TestCreatePropagatesBacklogFull(t *testing.T) {
	store := newFakeStore()
	store.enqueueErr = queue.ErrBacklogFull
	svc := NewJobService(store, &serviceNotifier{}, logging.NewNop())

	_, err := svc.Create(context.Background(), CreateJobRequest{VodID: "123456"})
	if !errors.Is(err, queue.ErrBacklogFull) {
		t.Fatalf("expected backlog error, got %v", err)
	}
}

func TestDescribeUnknownJob(t *testing.T) {
	svc := NewJobService(newFakeStore(), &serviceNotifier{}, logging.NewNop())
	_, err := svc.Describe(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestFilePathStatusGates(t *testing.T) {
	store := newFakeStore()
	store.jobs["running"] = &queue.Job{ID: 1, Key: "running", Status: queue.StatusCombining}
	store.jobs["done"] = &queue.Job{ID: 2, Key: "done", Status: queue.StatusCompleted, FinalFile: "/out/123-done.final.mp4"}
	store.jobs["evicted"] = &queue.Job{ID: 3, Key: "evicted", Status: queue.StatusCompleted}
	svc := NewJobService(store, &serviceNotifier{}, logging.NewNop())

	if _, err := svc.FilePath(context.Background(), "running"); !errors.Is(err, services.ErrConflict) {
		t.Errorf("in-flight job: expected conflict, got %v", err)
	}
	if _, err := svc.FilePath(context.Background(), "evicted"); !errors.Is(err, services.ErrGone) {
		t.Errorf("missing file: expected gone, got %v", err)
	}
	path, err := svc.FilePath(context.Background(), "done")
	if err != nil {
		t.Fatalf("completed job: %v", err)
	}
	if path != "/out/123-done.final.mp4" {
		t.Errorf("path = %q", path)
	}
}

func TestCancelAndDeleteResolveByKey(t *testing.T) {
	store := newFakeStore()
	store.jobs["abc"] = &queue.Job{ID: 9, Key: "abc", VodID: "55", Status: queue.StatusDownloading}
	svc := NewJobService(store, &serviceNotifier{}, logging.NewNop())

	if err := svc.Cancel(context.Background(), "abc"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(store.cancelled) != 1 || store.cancelled[0] != 9 {
		t.Fatalf("cancel ids = %v", store.cancelled)
	}

	if err := svc.Delete(context.Background(), "abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.removed) != 1 || store.removed[0] != 9 {
		t.Fatalf("removed ids = %v", store.removed)
	}
	if err := svc.Delete(context.Background(), "abc"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}
