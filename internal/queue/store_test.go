package queue_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vodstitch/internal/queue"
	"vodstitch/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Enqueue(ctx, "123456789", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if len(job.Key) != 32 {
		t.Fatalf("expected 32-char job key, got %q", job.Key)
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}

	fetched, err := store.GetByKey(ctx, job.Key)
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if fetched == nil || fetched.ID != job.ID {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}

	params, err := fetched.Params()
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	if params.Quality != "1080p60" || !params.IncludeChat {
		t.Fatalf("unexpected params round trip: %#v", params)
	}
}

func TestEnqueueEnforcesBacklog(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBacklog(2))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := store.Enqueue(ctx, fmt.Sprintf("10000000%d", i), testsupport.SampleParams()); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
	}

	_, err := store.Enqueue(ctx, "999999999", testsupport.SampleParams())
	if !errors.Is(err, queue.ErrBacklogFull) {
		t.Fatalf("expected ErrBacklogFull, got %v", err)
	}
}

func TestBacklogIgnoresFinishedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBacklog(1))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Enqueue(ctx, "111111111", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	job.Status = queue.StatusCompleted
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := store.Enqueue(ctx, "222222222", testsupport.SampleParams()); err != nil {
		t.Fatalf("expected enqueue after completion, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBacklog(10))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var keys []string
	for i := 0; i < 3; i++ {
		job, err := store.Enqueue(ctx, fmt.Sprintf("55500000%d", i), testsupport.SampleParams())
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		keys = append(keys, job.Key)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].Key != keys[2] || jobs[2].Key != keys[0] {
		t.Fatalf("expected newest-first ordering, got %v then %v", jobs[0].Key, jobs[2].Key)
	}
}

func TestNextForStatusesClaimsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBacklog(10))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first, err := store.Enqueue(ctx, "100000001", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := store.Enqueue(ctx, "100000002", testsupport.SampleParams()); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	next, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest job %d, got %#v", first.ID, next)
	}
}

func TestAppendLogCapsLines(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLogLineCap(10))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Enqueue(ctx, "123123123", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	for i := 0; i < 25; i++ {
		if err := store.AppendLog(ctx, job.ID, fmt.Sprintf("line-%d", i)); err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
	}

	updated, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	lines := strings.Split(updated.LogText, "\n")
	if len(lines) != 10 {
		t.Fatalf("expected log capped at 10 lines, got %d", len(lines))
	}
	if lines[0] != "line-15" || lines[9] != "line-24" {
		t.Fatalf("expected oldest lines dropped, got first=%q last=%q", lines[0], lines[9])
	}
	if updated.LastLogLine != "line-24" {
		t.Fatalf("expected last log line tracked, got %q", updated.LastLogLine)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBacklog(10))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		initial  queue.Status
		expected queue.Status
	}{
		{queue.StatusDownloading, queue.StatusPending},
		{queue.StatusChatRendering, queue.StatusDownloaded},
		{queue.StatusCombining, queue.StatusChatRendered},
	}
	var ids []int64
	for i, tc := range cases {
		job, err := store.Enqueue(ctx, fmt.Sprintf("90000000%d", i), testsupport.SampleParams())
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		job.Status = tc.initial
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, job.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d jobs reset, got %d", len(cases), count)
	}
	for i, tc := range cases {
		updated, err := store.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.initial, tc.expected, updated.Status)
		}
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBacklog(10))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Enqueue(ctx, "777000111", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	stale := time.Now().UTC().Add(-time.Hour)
	job.Status = queue.StatusDownloading
	job.LastHeartbeat = &stale
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job reclaimed, got %d", count)
	}

	updated, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", updated.Status)
	}
	if updated.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared")
	}
}

func TestReclaimKeepsFreshJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBacklog(10))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Enqueue(ctx, "777000222", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	fresh := time.Now().UTC()
	job.Status = queue.StatusDownloading
	job.LastHeartbeat = &fresh
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no jobs reclaimed, got %d", count)
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBacklog(10))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Enqueue(ctx, "333000111", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	job.SetFailed("boom")
	job.Hint = "try again"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job retried, got %d", count)
	}

	updated, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", updated.Status)
	}
	if updated.ErrorMessage != "" || updated.Hint != "" {
		t.Fatalf("expected error and hint cleared, got %q / %q", updated.ErrorMessage, updated.Hint)
	}
}

func TestEvictFinishedRemovesOldestAndFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBacklog(10))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var jobs []*queue.Job
	for i := 0; i < 4; i++ {
		job, err := store.Enqueue(ctx, fmt.Sprintf("40000000%d", i), testsupport.SampleParams())
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		finalPath := filepath.Join(cfg.DownloadDir, fmt.Sprintf("final-%d.mp4", i))
		testsupport.WriteFile(t, finalPath, "media")
		job.Status = queue.StatusCompleted
		job.FinalFile = finalPath
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		jobs = append(jobs, job)
	}

	evicted, err := store.EvictFinished(ctx, 2)
	if err != nil {
		t.Fatalf("EvictFinished failed: %v", err)
	}
	if evicted != 2 {
		t.Fatalf("expected 2 jobs evicted, got %d", evicted)
	}

	// Oldest two jobs and their files are gone.
	for i := 0; i < 2; i++ {
		gone, err := store.GetByID(ctx, jobs[i].ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if gone != nil {
			t.Fatalf("expected job %d evicted", jobs[i].ID)
		}
		if _, err := os.Stat(jobs[i].FinalFile); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected file %s removed", jobs[i].FinalFile)
		}
	}
	for i := 2; i < 4; i++ {
		kept, err := store.GetByID(ctx, jobs[i].ID)
		if err != nil || kept == nil {
			t.Fatalf("expected job %d kept: %v", jobs[i].ID, err)
		}
	}
}

func TestRemoveDeletesArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Enqueue(ctx, "606060606", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	video := filepath.Join(cfg.DownloadDir, "v.mp4")
	final := filepath.Join(cfg.DownloadDir, "f.mp4")
	testsupport.WriteFile(t, video, "a")
	testsupport.WriteFile(t, final, "b")
	job.VideoFile = video
	job.FinalFile = final
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	removed, err := store.Remove(ctx, job.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected removal")
	}
	for _, path := range []string{video, final} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s removed", path)
		}
	}
}

func TestRequestCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Enqueue(ctx, "121212121", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := store.RequestCancel(ctx, job.ID); err != nil {
		t.Fatalf("RequestCancel failed: %v", err)
	}
	updated, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !updated.CancelRequested {
		t.Fatal("expected cancel flag set")
	}

	if err := store.RequestCancel(ctx, 99999); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBacklog(10))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{
		queue.StatusPending,
		queue.StatusDownloading,
		queue.StatusCompleted,
		queue.StatusFailed,
	}
	for i, status := range statuses {
		job, err := store.Enqueue(ctx, fmt.Sprintf("80000000%d", i), testsupport.SampleParams())
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		job.Status = status
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 4 || health.Pending != 1 || health.Processing != 1 || health.Completed != 1 || health.Failed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}

	dbHealth, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !dbHealth.DatabaseExists || !dbHealth.DatabaseReadable || !dbHealth.TableExists || !dbHealth.IntegrityCheck {
		t.Fatalf("unexpected database health: %#v", dbHealth)
	}
	if dbHealth.TotalJobs != 4 {
		t.Fatalf("expected 4 jobs counted, got %d", dbHealth.TotalJobs)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Downloading "); !ok || status != queue.StatusDownloading {
		t.Fatalf("expected downloading, got %q ok=%v", status, ok)
	}
	if _, ok := queue.ParseStatus("bogus"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
