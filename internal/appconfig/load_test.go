package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 7
store:
  backend: memory
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: memory
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected missing config_version error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedBackend(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
store:
  backend: nope
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported store.backend") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestLoadRejectsInvalidRemoteURL(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
browser:
  remote_url: ftp://127.0.0.1:9222
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "browser.remote_url") {
		t.Fatalf("expected remote_url error, got %v", err)
	}
}

func TestLoadRejectsBasePathURL(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
http:
  base_path: https://example.com/tabs
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "http.base_path") {
		t.Fatalf("expected base_path error, got %v", err)
	}
}

func TestLoadAppliesOverridesAndDefaults(t *testing.T) {
	t.Setenv("TABKEEPER_REDIS", "redis.internal:6379")
	path := writeConfig(t, `
config_version: 1
store:
  backend: redis
  redis:
    addr: ${TABKEEPER_REDIS}
    db: 2
reconcile:
  debounce_ms: 150
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != StoreRedis || cfg.Store.Redis.Addr != "redis.internal:6379" || cfg.Store.Redis.DB != 2 {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Store.Redis.Key != "tabkeeper:windows" {
		t.Fatalf("expected default redis key, got %q", cfg.Store.Redis.Key)
	}
	svc := cfg.Reconcile.ServiceConfig()
	if svc.Debounce != 150*time.Millisecond {
		t.Fatalf("expected debounce override, got %v", svc.Debounce)
	}
	if cfg.HTTP.Addr == "" {
		t.Fatalf("expected default http addr")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion || cfg.Store.Backend != StoreFile {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("expected written default to load: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
