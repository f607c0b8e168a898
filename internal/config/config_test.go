package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if !cfg.Watch.Enabled {
		t.Error("watcher disabled by default")
	}
	if got := cfg.Watch.QuietInterval(); got != 888*time.Millisecond {
		t.Errorf("QuietInterval() = %v, want 888ms", got)
	}
	if got := cfg.Watch.PollTimeout(); got != 333*time.Millisecond {
		t.Errorf("PollTimeout() = %v, want 333ms", got)
	}
	if cfg.SocketPath != filepath.Join(cfg.DataDir, "repowatch.sock") {
		t.Errorf("SocketPath = %q, not under DataDir", cfg.SocketPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Watch.Enabled || cfg.Watch.QuietIntervalMs != 888 {
		t.Errorf("missing file did not yield defaults: %+v", cfg.Watch)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"data_dir": "/var/lib/repowatch",
		"log_level": "debug",
		"watch": {
			"enabled": false,
			"quiet_interval_ms": 250,
			"ignore_patterns": ["*.swp", "build/**"]
		}
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Watch.Enabled {
		t.Error("watch.enabled override not applied")
	}
	if got := cfg.Watch.QuietInterval(); got != 250*time.Millisecond {
		t.Errorf("QuietInterval() = %v, want 250ms", got)
	}
	// Unset in the file, must re-derive from the overridden data dir.
	if want := filepath.Join("/var/lib/repowatch", "repowatch.sock"); cfg.SocketPath != want {
		t.Errorf("SocketPath = %q, want %q", cfg.SocketPath, want)
	}
	if want := filepath.Join("/var/lib/repowatch", "repowatch.db"); cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
	// Omitted timing fields fall back rather than going to zero.
	if cfg.Watch.PollTimeoutMs != 333 {
		t.Errorf("PollTimeoutMs = %d, want 333", cfg.Watch.PollTimeoutMs)
	}
	if len(cfg.Watch.IgnorePatterns) != 2 {
		t.Errorf("IgnorePatterns = %v, want 2 entries", cfg.Watch.IgnorePatterns)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed config file did not fail")
	}
}

func TestEnsureDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "data")

	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir: %v", err)
	}
	info, err := os.Stat(cfg.DataDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("data dir not created: %v", err)
	}
	// Second call is a no-op.
	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir again: %v", err)
	}
}
