package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RESTED_BASE_URLS", "RESTED_NAMESPACE", "RESTED_LOCAL_STORAGE", "RESTED_OFFLINE",
		"RESTED_STORE", "RESTED_CACHE_DIR", "RESTED_DATABASE_URL", "RESTED_TOKEN",
		"RESTED_HEALTH_INTERVAL", "RESTED_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
		"RESTED_OIDC_ISSUER_URL", "RESTED_OIDC_CLIENT_ID",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESTED_BASE_URLS", "http://a.test, https://b.test")
	t.Setenv("RESTED_NAMESPACE", "app")
	t.Setenv("RESTED_OFFLINE", "true")
	t.Setenv("RESTED_STORE", "memory")
	t.Setenv("RESTED_HEALTH_INTERVAL", "5s")
	t.Setenv("RESTED_TOKEN", "abc")
	t.Setenv("RESTED_OIDC_ISSUER_URL", "https://id.example.test/realms/rested")
	t.Setenv("RESTED_OIDC_CLIENT_ID", "restedctl")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.BaseURLs) != 2 || cfg.BaseURLs[1] != "https://b.test" {
		t.Errorf("unexpected base urls %v", cfg.BaseURLs)
	}
	if cfg.Namespace != "app" || !cfg.Offline || cfg.Store != StoreMemory {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.OIDCIssuerURL != "https://id.example.test/realms/rested" || cfg.OIDCClientID != "restedctl" {
		t.Errorf("unexpected oidc config %q %q", cfg.OIDCIssuerURL, cfg.OIDCClientID)
	}
	if cfg.HealthInterval != 5*time.Second {
		t.Errorf("unexpected health interval %v", cfg.HealthInterval)
	}

	rc := cfg.Rested()
	if rc.DefaultHeaders["Authorization"] != "Bearer abc" {
		t.Errorf("expected auth header, got %v", rc.DefaultHeaders)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "rested.yaml")
	data := []byte(`base_urls:
  - http://file.test
namespace: fromfile
store: badger
timeout: 3s
headers:
  X-App: rested
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RESTED_NAMESPACE", "fromenv")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURLs[0] != "http://file.test" || cfg.Store != StoreBadger {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Namespace != "fromenv" {
		t.Errorf("expected env to override file, got %q", cfg.Namespace)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("unexpected timeout %v", cfg.Timeout)
	}
	if cfg.Headers["X-App"] != "rested" {
		t.Errorf("unexpected headers %v", cfg.Headers)
	}
	if !cfg.LocalStorage {
		t.Error("expected default local storage to survive")
	}
}

func TestLoadRequiresBaseURL(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "base_urls" {
		t.Errorf("expected base_urls error, got %v", err)
	}
}

func TestValidateStore(t *testing.T) {
	cfg := Default()
	cfg.BaseURLs = []string{"http://a.test"}

	cfg.Store = "floppy"
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown store error")
	}

	cfg.Store = StorePostgres
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing database url error")
	}
	cfg.DatabaseURL = "postgres://localhost/rested"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error %v", err)
	}

	cfg.BaseURLs = []string{"ftp://a.test"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid url error")
	}
}

func TestMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
