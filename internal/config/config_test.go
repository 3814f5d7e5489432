package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  port: "8080"
redis:
  addr: localhost:6379
  db: 1
auth:
  secret: from-file
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("QUIZ_REDIS_ADDR", "redis:6380")
	t.Setenv("QUIZ_REDIS_DB", "4")
	t.Setenv("QUIZ_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected port from file, got %q", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis:6380" || cfg.Redis.DB != 4 {
		t.Fatalf("expected env redis override, got %q db %d", cfg.Redis.Addr, cfg.Redis.DB)
	}
	if cfg.Auth.Secret != "from-file" {
		t.Fatalf("expected secret from file, got %q", cfg.Auth.Secret)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected log level from env, got %q", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on garbage, got %v", got)
	}
}
