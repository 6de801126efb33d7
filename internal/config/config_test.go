package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "test-missing")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "release" {
		t.Errorf("mode = %q, want release", cfg.Mode)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.DBPath != "confkit.db" {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("sweep_interval = %v, want 1m", cfg.SweepInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown_timeout = %v, want 5s", cfg.ShutdownTimeout)
	}
}
