package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Orchestrator.MaxCycles != 100 {
		t.Errorf("MaxCycles = %d", cfg.Orchestrator.MaxCycles)
	}
	if cfg.Shell.GracePeriod != "5s" || cfg.Shell.PreviewChars != 1000 {
		t.Errorf("shell defaults = %+v", cfg.Shell)
	}
	if cfg.KB.ChunkSize != 1000 || cfg.KB.ChunkOverlap != 200 || cfg.KB.TopK != 5 {
		t.Errorf("kb defaults = %+v", cfg.KB)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Orchestrator.MaxCycles != 100 {
		t.Errorf("MaxCycles = %d", cfg.Orchestrator.MaxCycles)
	}
}

func TestLoadOverridesAndEnvKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreman.yaml")
	data := []byte("orchestrator:\n  max_cycles: 7\nshell:\n  grace_period: 2s\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Orchestrator.MaxCycles != 7 {
		t.Errorf("MaxCycles = %d, want 7", cfg.Orchestrator.MaxCycles)
	}
	if cfg.Shell.GracePeriod != "2s" {
		t.Errorf("GracePeriod = %q", cfg.Shell.GracePeriod)
	}
	if cfg.Shell.PreviewChars != 1000 {
		t.Errorf("unset field lost its default: %d", cfg.Shell.PreviewChars)
	}
	if cfg.Reasoner.APIKey != "from-env" {
		t.Errorf("APIKey = %q", cfg.Reasoner.APIKey)
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("got %v", got)
	}
	if got := ParseDuration("", time.Second); got != time.Second {
		t.Errorf("empty fell through to %v", got)
	}
	if got := ParseDuration("bogus", 2*time.Second); got != 2*time.Second {
		t.Errorf("invalid fell through to %v", got)
	}
}
