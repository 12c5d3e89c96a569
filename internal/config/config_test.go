package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if time.Duration(cfg.RangingTimeout) != 5*time.Second {
		t.Errorf("RangingTimeout = %v, want 5s", time.Duration(cfg.RangingTimeout))
	}
	if cfg.ResolveTimeout != 0 {
		t.Errorf("ResolveTimeout = %v, want 0 (unbounded)", time.Duration(cfg.ResolveTimeout))
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rangerd.yaml")
	content := `
addr: ":9090"
log_level: debug
ranging_timeout: 2s
resolve_timeout: 750ms
sim_distance_script: "1000 + index * 250"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if time.Duration(cfg.RangingTimeout) != 2*time.Second {
		t.Errorf("RangingTimeout = %v, want 2s", time.Duration(cfg.RangingTimeout))
	}
	if time.Duration(cfg.ResolveTimeout) != 750*time.Millisecond {
		t.Errorf("ResolveTimeout = %v, want 750ms", time.Duration(cfg.ResolveTimeout))
	}
	if cfg.SimDistanceScript != "1000 + index * 250" {
		t.Errorf("SimDistanceScript = %q", cfg.SimDistanceScript)
	}
	// Untouched fields keep defaults.
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want default text", cfg.LogFormat)
	}
}

func TestLoadFile_BadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rangerd.yaml")
	if err := os.WriteFile(path, []byte("ranging_timeout: nonsense\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile with bad duration should fail")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile of a missing file should fail")
	}
}
