package deps_test

import (
	"testing"

	"vodstitch/internal/deps"
	"vodstitch/internal/testsupport"
)

func TestCheckBinariesReportsMissing(t *testing.T) {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "Missing", Command: "definitely-not-a-real-binary-xyz"},
		{Name: "Unconfigured", Command: "  "},
	})
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if statuses[1].Available || statuses[1].Detail != "command not configured" {
		t.Fatalf("unexpected status for unconfigured command: %#v", statuses[1])
	}
}

func TestCheckBinariesFindsShell(t *testing.T) {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "Shell", Command: "sh"},
	})
	if !statuses[0].Available {
		t.Fatalf("expected sh to be found: %#v", statuses[0])
	}
}

func TestRequirementsCoverToolchain(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reqs := deps.Requirements(cfg)
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != cfg.TwitchDownloaderBinary {
		t.Fatalf("expected downloader binary first, got %q", reqs[0].Command)
	}
	if !reqs[2].Optional {
		t.Fatal("expected ffprobe to be optional")
	}
}
