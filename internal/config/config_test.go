package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
server:
  port: "9090"
postgres:
  url: postgres://file
import:
  secret: from-file
  workers: 4
  run_ttl: 30m
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("IMPORT_SECRET", "from-env")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Import.Workers != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Import.Secret != "from-env" {
		t.Fatalf("expected env secret, got %q", cfg.Import.Secret)
	}
	if cfg.Postgres.URL != "postgres://file" {
		t.Fatalf("empty env must not override url, got %q", cfg.Postgres.URL)
	}
	if got := TTLDuration(cfg.Import.RunTTL, time.Hour); got != 30*time.Minute {
		t.Fatalf("expected 30m run ttl, got %v", got)
	}
}

func TestDefaults(t *testing.T) {
	var cfg Config
	if cfg.ErrorLimit() != 10 {
		t.Fatalf("expected default error limit 10, got %d", cfg.ErrorLimit())
	}
	if cfg.MaxBodyBytes() != 8<<20 {
		t.Fatalf("unexpected default body limit %d", cfg.MaxBodyBytes())
	}
	if got := TTLDuration("garbage", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
