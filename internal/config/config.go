// Package config loads restedctl configuration from an optional YAML file
// and environment variables. Environment variables win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fruitsalade/rested/pkg/rested"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
	StoreS3       = "s3"
)

// Config holds all client configuration.
type Config struct {
	// API
	BaseURLs []string          `yaml:"base_urls"`
	Headers  map[string]string `yaml:"headers"`
	Token    string            `yaml:"token"`
	Timeout  time.Duration     `yaml:"timeout"`

	// OIDC (optional): verify tokens returned at login
	OIDCIssuerURL string `yaml:"oidc_issuer_url"`
	OIDCClientID  string `yaml:"oidc_client_id"`

	// Cache
	Namespace    string `yaml:"namespace"`
	LocalStorage bool   `yaml:"local_storage"`
	Offline      bool   `yaml:"offline"`
	Store        string `yaml:"store"`
	CacheDir     string `yaml:"cache_dir"`
	MaxCacheSize int64  `yaml:"max_cache_size"`
	DatabaseURL  string `yaml:"database_url"`

	// S3 cache store
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Prefix    string `yaml:"s3_prefix"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Region    string `yaml:"s3_region"`

	// Health check
	HealthPath     string        `yaml:"health_path"`
	HealthInterval time.Duration `yaml:"health_interval"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Timeout:        30 * time.Second,
		Namespace:      rested.DefaultNamespace,
		LocalStorage:   true,
		Store:          StoreFile,
		CacheDir:       defaultCacheDir(),
		MaxCacheSize:   100 * 1024 * 1024, // 100MB
		S3Bucket:       "rested",
		S3Prefix:       "cache/",
		S3Region:       "us-east-1",
		HealthPath:     rested.DefaultHealthPath,
		HealthInterval: rested.DefaultHealthInterval,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Load reads path, when non-empty, then applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RESTED_BASE_URLS"); v != "" {
		c.BaseURLs = splitList(v)
	}
	c.Namespace = envOr("RESTED_NAMESPACE", c.Namespace)
	c.LocalStorage = envBool("RESTED_LOCAL_STORAGE", c.LocalStorage)
	c.Offline = envBool("RESTED_OFFLINE", c.Offline)
	c.Store = envOr("RESTED_STORE", c.Store)
	c.CacheDir = envOr("RESTED_CACHE_DIR", c.CacheDir)
	c.MaxCacheSize = envInt64("RESTED_MAX_CACHE_SIZE", c.MaxCacheSize)
	c.DatabaseURL = envOr("RESTED_DATABASE_URL", c.DatabaseURL)
	c.S3Endpoint = envOr("RESTED_S3_ENDPOINT", c.S3Endpoint)
	c.S3Bucket = envOr("RESTED_S3_BUCKET", c.S3Bucket)
	c.S3Prefix = envOr("RESTED_S3_PREFIX", c.S3Prefix)
	c.S3AccessKey = envOr("RESTED_S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = envOr("RESTED_S3_SECRET_KEY", c.S3SecretKey)
	c.S3Region = envOr("RESTED_S3_REGION", c.S3Region)
	c.Token = envOr("RESTED_TOKEN", c.Token)
	c.OIDCIssuerURL = envOr("RESTED_OIDC_ISSUER_URL", c.OIDCIssuerURL)
	c.OIDCClientID = envOr("RESTED_OIDC_CLIENT_ID", c.OIDCClientID)
	c.HealthPath = envOr("RESTED_HEALTH_PATH", c.HealthPath)
	c.HealthInterval = envDuration("RESTED_HEALTH_INTERVAL", c.HealthInterval)
	c.Timeout = envDuration("RESTED_TIMEOUT", c.Timeout)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
}

// Validate checks the configuration for missing or unknown values.
func (c *Config) Validate() error {
	if len(c.BaseURLs) == 0 {
		return &ConfigError{Field: "base_urls", Message: "at least one base URL is required (RESTED_BASE_URLS)"}
	}
	for _, u := range c.BaseURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return &ConfigError{Field: "base_urls", Message: fmt.Sprintf("%q is not an http(s) URL", u)}
		}
	}

	switch c.Store {
	case StoreMemory, StoreFile, StoreBadger:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return &ConfigError{Field: "database_url", Message: "required for the postgres store (RESTED_DATABASE_URL)"}
		}
	case StoreS3:
		if c.S3Bucket == "" {
			return &ConfigError{Field: "s3_bucket", Message: "required for the s3 store"}
		}
	default:
		return &ConfigError{Field: "store", Message: fmt.Sprintf("unknown store %q", c.Store)}
	}

	if c.HealthInterval < 0 {
		return &ConfigError{Field: "health_interval", Message: "must not be negative"}
	}
	return nil
}

// Rested returns the runtime configuration for rested.NewClient.
func (c *Config) Rested() rested.Config {
	headers := make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		headers[k] = v
	}
	if c.Token != "" {
		headers["Authorization"] = "Bearer " + c.Token
	}
	return rested.Config{
		BaseURLs:       c.BaseURLs,
		DefaultHeaders: headers,
		Namespace:      c.Namespace,
		LocalStorage:   c.LocalStorage,
		Offline:        c.Offline,
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "rested")
	}
	return filepath.Join(dir, "rested")
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
