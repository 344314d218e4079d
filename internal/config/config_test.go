package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harrier.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
jobs:
  max_active_jobs: 3
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Jobs.MaxActiveJobs != 3 {
		t.Errorf("max active jobs = %d, want 3", cfg.Jobs.MaxActiveJobs)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %s, want debug", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("read timeout = %v, want default 30s", cfg.Server.ReadTimeout)
	}
	if !cfg.Extraction.ValidateHashLengths {
		t.Error("hash validation default lost")
	}
	if cfg.Learning.AutoValidateScore != 0.8 {
		t.Errorf("auto validate score = %v, want default 0.8", cfg.Learning.AutoValidateScore)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
