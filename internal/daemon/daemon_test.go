package daemon_test

import (
	"context"
	"testing"
	"time"

	"vodstitch/internal/daemon"
	"vodstitch/internal/logging"
	"vodstitch/internal/queue"
	"vodstitch/internal/stage"
	"vodstitch/internal/testsupport"
	"vodstitch/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *queue.Job) error { return nil }
func (noopStage) Execute(context.Context, *queue.Job) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureStages(workflow.StageSet{
		Downloader:   noopStage{},
		ChatRenderer: noopStage{},
		Composer:     noopStage{},
	})
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID <= 0 {
		t.Fatalf("pid = %d", status.PID)
	}

	// Second start should fail.
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonQueueMaintenance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{
		Downloader:   noopStage{},
		ChatRenderer: noopStage{},
		Composer:     noopStage{},
	})
	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	ctx := context.Background()

	job, err := store.Enqueue(ctx, "123456", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job.SetFailed("download exploded")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	retried, err := d.RetryFailed(ctx, nil)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d", retried)
	}

	health, err := d.QueueHealth(ctx)
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	if health.Total != 1 || health.Pending != 1 {
		t.Fatalf("health = %+v", health)
	}

	removed, err := d.ClearQueue(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}
}
