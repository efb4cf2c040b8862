package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vodstitch/internal/api"
	"vodstitch/internal/daemon"
	"vodstitch/internal/ipc"
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

func TestIPCServerClient(t *testing.T) {
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
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.LogDir, "vodstitch.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if len(status.StageHealth) != 3 {
		t.Fatalf("expected 3 stage health entries, got %d", len(status.StageHealth))
	}

	// Stop the workflow before mutating the queue so the noop pipeline does
	// not race the assertions below.
	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected stop response to be true")
	}

	addResp, err := client.JobAdd(api.CreateJobRequest{VodID: "2345678901"})
	if err != nil {
		t.Fatalf("JobAdd failed: %v", err)
	}
	if addResp.Job.Key == "" {
		t.Fatal("expected queued job to have a key")
	}
	if addResp.Job.Status != string(queue.StatusPending) {
		t.Fatalf("expected pending job, got %s", addResp.Job.Status)
	}

	describeResp, err := client.JobDescribe(addResp.Job.Key)
	if err != nil {
		t.Fatalf("JobDescribe failed: %v", err)
	}
	if describeResp.Job.VodID != "2345678901" {
		t.Fatalf("unexpected vod id %q", describeResp.Job.VodID)
	}

	failed, err := store.Enqueue(ctx, "999", testsupport.SampleParams())
	if err != nil {
		t.Fatalf("enqueue failed job: %v", err)
	}
	failed.SetFailed("chat render exploded")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("update failed job: %v", err)
	}

	listResp, err := client.JobList(nil)
	if err != nil {
		t.Fatalf("JobList failed: %v", err)
	}
	if len(listResp.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(listResp.Jobs))
	}

	failedResp, err := client.JobList([]string{string(queue.StatusFailed)})
	if err != nil {
		t.Fatalf("JobList failed filter: %v", err)
	}
	if len(failedResp.Jobs) != 1 || failedResp.Jobs[0].Key != failed.Key {
		t.Fatalf("expected failed job %s, got %+v", failed.Key, failedResp.Jobs)
	}

	retryResp, err := client.QueueRetry(nil)
	if err != nil {
		t.Fatalf("QueueRetry failed: %v", err)
	}
	if retryResp.Updated != 1 {
		t.Fatalf("expected 1 retried job, got %d", retryResp.Updated)
	}

	cancelResp, err := client.JobCancel(addResp.Job.Key)
	if err != nil {
		t.Fatalf("JobCancel failed: %v", err)
	}
	if !cancelResp.OK {
		t.Fatal("expected cancel acknowledgement")
	}
	cancelled, err := store.GetByKey(ctx, addResp.Job.Key)
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if !cancelled.CancelRequested {
		t.Fatal("expected cancel flag on job")
	}

	removeResp, err := client.JobRemove(addResp.Job.Key)
	if err != nil {
		t.Fatalf("JobRemove failed: %v", err)
	}
	if !removeResp.OK {
		t.Fatal("expected removal acknowledgement")
	}
	if _, err := client.JobDescribe(addResp.Job.Key); err == nil {
		t.Fatal("expected describe of removed job to fail")
	}

	healthResp, err := client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth failed: %v", err)
	}
	if healthResp.Total != 1 || healthResp.Pending != 1 {
		t.Fatalf("unexpected health response: %#v", healthResp)
	}

	dbHealth, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth failed: %v", err)
	}
	if !strings.HasSuffix(dbHealth.DBPath, "queue.db") {
		t.Fatalf("unexpected db path: %s", dbHealth.DBPath)
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp == nil || notifyResp.Message == "" {
		t.Fatalf("expected notification message, got %#v", notifyResp)
	}

	clearResp, err := client.QueueClear()
	if err != nil {
		t.Fatalf("QueueClear failed: %v", err)
	}
	if clearResp.Removed != 1 {
		t.Fatalf("expected 1 job cleared, got %d", clearResp.Removed)
	}

	status2, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status2.Running {
		t.Fatal("expected daemon to be stopped")
	}
}
