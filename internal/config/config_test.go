package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/basket/taskdeck/internal/config"
)

func TestLoad_FromTaskdeckHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TASKDECK_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"),
		[]byte("base_url: https://tasks.example.com/api\nlog_level: debug\nrequest_timeout_seconds: 30\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BaseURL != "https://tasks.example.com/api" {
		t.Fatalf("unexpected base_url: %q", cfg.BaseURL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log_level: %q", cfg.LogLevel)
	}
	if cfg.RequestTimeoutSeconds != 30 {
		t.Fatalf("unexpected request_timeout_seconds: %d", cfg.RequestTimeoutSeconds)
	}
}

func TestLoad_FirstRunWritesMinimalConfig(t *testing.T) {
	home := filepath.Join(t.TempDir(), "fresh")
	t.Setenv("TASKDECK_HOME", home)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BaseURL == "" {
		t.Fatal("expected default base_url")
	}

	raw, err := os.ReadFile(config.ConfigPath(home))
	if err != nil {
		t.Fatalf("expected config.yaml to be written: %v", err)
	}
	if !strings.Contains(string(raw), "base_url") {
		t.Fatalf("starter config missing base_url: %s", raw)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TASKDECK_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"),
		[]byte("base_url: http://file.example.com/api\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TASKDECK_BASE_URL", "http://env.example.com/api")
	t.Setenv("TASKDECK_LOG_LEVEL", "warn")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BaseURL != "http://env.example.com/api" {
		t.Fatalf("env override not applied: %q", cfg.BaseURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("env override not applied: %q", cfg.LogLevel)
	}
}

func TestLoad_RejectsBadBaseURL(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TASKDECK_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"),
		[]byte("base_url: ftp://wrong\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for non-http base_url")
	}
}
