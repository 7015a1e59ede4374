package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"voicebox/internal/config"
	"voicebox/internal/deps"
)

func TestCheckBinariesReportsMissing(t *testing.T) {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "absent", Command: "definitely-not-a-real-binary-7f3a"},
	})
	if len(statuses) != 1 {
		t.Fatalf("expected one status, got %d", len(statuses))
	}
	if statuses[0].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if statuses[0].Detail == "" {
		t.Fatal("expected detail for missing binary")
	}
}

func TestCheckBinariesHandlesEmptyCommand(t *testing.T) {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "blank", Command: "   "},
	})
	if statuses[0].Available {
		t.Fatal("expected blank command to be unavailable")
	}
	if statuses[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail %q", statuses[0].Detail)
	}
}

func TestCheckBinariesFindsStub(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffplay")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", dir)

	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "ffplay", Command: "ffplay"},
	})
	if !statuses[0].Available {
		t.Fatalf("expected stub binary to be found: %+v", statuses[0])
	}
}

func TestRequirementsUseConfiguredBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Player.FFplayBinary = "/opt/ffplay-custom"

	reqs := deps.Requirements(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected two requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "/opt/ffplay-custom" {
		t.Fatalf("unexpected ffplay command %q", reqs[0].Command)
	}
	if reqs[1].Command != "ffprobe" {
		t.Fatalf("unexpected ffprobe command %q", reqs[1].Command)
	}
}
