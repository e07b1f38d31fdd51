package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LIVECHESS_CONFIG", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("SESSION_TTL", "600")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MESSAGE_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.RedisURL != "redis://localhost:6379/0" || cfg.SessionTTLSec != 600 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadRequiresRedis(t *testing.T) {
	t.Setenv("LIVECHESS_CONFIG", "")
	t.Setenv("REDIS_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("missing redis url must fail")
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livechess.yaml")
	raw := []byte("listen_addr: \":7070\"\nredis_url: \"redis://file:6379/0\"\nsession_ttl_sec: 120\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LIVECHESS_CONFIG", path)
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("REDIS_URL", "redis://env:6379/1")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MESSAGE_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7070" || cfg.SessionTTLSec != 120 {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.RedisURL != "redis://env:6379/1" {
		t.Fatalf("env must win over file: %+v", cfg)
	}
}
