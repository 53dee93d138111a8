package joynrconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AdminAddr != ":9990" {
		t.Fatalf("AdminAddr = %q, want :9990", cfg.AdminAddr)
	}
	if cfg.ExpirySweepInterval != 30*time.Second {
		t.Fatalf("ExpirySweepInterval = %v, want 30s", cfg.ExpirySweepInterval)
	}
	if cfg.WorkerPoolSize != 8 {
		t.Fatalf("WorkerPoolSize = %d, want 8", cfg.WorkerPoolSize)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "adminAddr: \":8080\"\nworkerPoolSize: 16\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AdminAddr != ":8080" {
		t.Fatalf("AdminAddr = %q, want :8080", cfg.AdminAddr)
	}
	if cfg.WorkerPoolSize != 16 {
		t.Fatalf("WorkerPoolSize = %d, want 16", cfg.WorkerPoolSize)
	}
	// Untouched keys still fall back to defaults.
	if cfg.GRPCAddr != ":9991" {
		t.Fatalf("GRPCAddr = %q, want default :9991", cfg.GRPCAddr)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("workerPoolSize: 4\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reloaded := make(chan *Config, 1)
	initial, _, err := Watch(path, func(cfg *Config) {
		reloaded <- cfg
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if initial.WorkerPoolSize != 4 {
		t.Fatalf("initial WorkerPoolSize = %d, want 4", initial.WorkerPoolSize)
	}

	if err := os.WriteFile(path, []byte("workerPoolSize: 32\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.WorkerPoolSize != 32 {
			t.Fatalf("reloaded WorkerPoolSize = %d, want 32", cfg.WorkerPoolSize)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onChange was not invoked after the config file changed")
	}
}
