// Package config defines the coprocessor's typed configuration surface and
// validation rules. Values are populated by Loader (loader.go), which
// layers defaults, an optional YAML file, and environment variables.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Config is the root configuration object, unmarshalled from the layered
// koanf instance built by Loader.
type Config struct {
	App       AppConfig       `koanf:"app"`
	Transport TransportConfig `koanf:"transport"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Docs      DocsConfig      `koanf:"docs"`
	Cache     CacheConfig     `koanf:"cache"`
	Audit     AuditConfig     `koanf:"audit"`
	Log       LogConfig       `koanf:"log"`
}

// AppConfig carries process-wide identity and environment.
type AppConfig struct {
	Name           string `koanf:"name"`
	Environment    string `koanf:"environment"` // development|staging|production
	WorkspaceRoot  string `koanf:"workspace_root"`
	RequireWorkspace bool `koanf:"require_workspace"`
}

// TransportConfig controls how the JSON-RPC surface is exposed.
type TransportConfig struct {
	Mode            string        `koanf:"mode"` // stdio|http
	HTTPAddr        string        `koanf:"http_addr"`
	CORSAllowOrigins []string     `koanf:"cors_allow_origins"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	RateLimitMax    int           `koanf:"rate_limit_max"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// UpstreamConfig configures the downstream analysis/service API the
// router delegates to once tier and tool routing are resolved.
type UpstreamConfig struct {
	BaseURL            string        `koanf:"base_url"`
	APIKey             string        `koanf:"api_key"`
	Timeout            time.Duration `koanf:"timeout"`
	MaxRetries         int           `koanf:"max_retries"`
	CircuitFailures    int           `koanf:"circuit_failures"`
	CircuitRecovery    time.Duration `koanf:"circuit_recovery"`
	CircuitHalfOpenMax int           `koanf:"circuit_half_open_max"`
}

// DocsConfig configures the documentation proxy's upstream and caching.
type DocsConfig struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	TTL     time.Duration `koanf:"ttl"`
}

// CacheConfig selects and configures the cache backend shared by the auth
// resolver and documentation proxy.
type CacheConfig struct {
	Driver       string        `koanf:"driver"` // memory|redis
	RedisAddr    string        `koanf:"redis_addr"`
	RedisDB      int           `koanf:"redis_db"`
	MaxEntries   int           `koanf:"max_entries"`
	MaxBytes     int64         `koanf:"max_bytes"`
	DefaultTTL   time.Duration `koanf:"default_ttl"`
	CleanupEvery time.Duration `koanf:"cleanup_every"`
}

// AuditConfig configures the telemetry sink.
type AuditConfig struct {
	Driver      string `koanf:"driver"` // noop|stdout|file|postgres
	FilePath    string `koanf:"file_path"`
	DatabaseURL string `koanf:"database_url"`
	BufferSize  int    `koanf:"buffer_size"`
	BatchSize   int    `koanf:"batch_size"`
	FlushEvery  time.Duration `koanf:"flush_every"`
}

// LogConfig configures structured logging; fields mirror logging.Config so
// the loader can unmarshal directly into it.
type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Output     string `koanf:"output"`
	FilePath   string `koanf:"file_path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
	AddSource  bool   `koanf:"add_source"`
}

var apiKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks the configuration for internal consistency and for the
// production-only requirements called out in the spec (a well-formed
// upstream API key of minimum length).
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("config: app.environment must be one of development|staging|production, got %q", c.App.Environment)
	}

	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("config: transport.mode must be stdio or http, got %q", c.Transport.Mode)
	}

	if c.Transport.Mode == "http" && c.Transport.HTTPAddr == "" {
		return fmt.Errorf("config: transport.http_addr required when transport.mode=http")
	}

	if c.IsProduction() {
		for _, origin := range c.Transport.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("config: transport.cors_allow_origins must not contain \"*\" in production")
			}
		}
		if err := validateAPIKey(c.Upstream.APIKey); err != nil {
			return fmt.Errorf("config: upstream.api_key: %w", err)
		}
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("config: cache.driver must be memory or redis, got %q", c.Cache.Driver)
	}
	if c.Cache.Driver == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("config: cache.redis_addr required when cache.driver=redis")
	}

	switch c.Audit.Driver {
	case "noop", "stdout", "file", "postgres":
	default:
		return fmt.Errorf("config: audit.driver must be one of noop|stdout|file|postgres, got %q", c.Audit.Driver)
	}
	if c.Audit.Driver == "file" && c.Audit.FilePath == "" {
		return fmt.Errorf("config: audit.file_path required when audit.driver=file")
	}
	if c.Audit.Driver == "postgres" && c.Audit.DatabaseURL == "" {
		return fmt.Errorf("config: audit.database_url required when audit.driver=postgres")
	}

	return nil
}

func validateAPIKey(key string) error {
	if len(key) < 32 {
		return fmt.Errorf("must be at least 32 characters")
	}
	if !apiKeyPattern.MatchString(key) {
		return fmt.Errorf("must match [A-Za-z0-9_-]+")
	}
	return nil
}

// IsDevelopment reports whether the app is running in the development
// environment, where relaxed CORS and verbose logging are acceptable.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction reports whether the app is running in production, where
// stricter validation (API key strength, no wildcard CORS) applies.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// RequireWorkspace reports whether a missing workspace root should be a
// fatal startup error rather than a soft warning, controlled by the
// SNAPBACK_REQUIRE_WORKSPACE environment variable.
func (c *Config) RequireWorkspace() bool {
	return c.App.RequireWorkspace
}

// String redacts secrets for safe logging at startup.
func (c *Config) String() string {
	redacted := *c
	redacted.Upstream.APIKey = redact(c.Upstream.APIKey)
	redacted.Docs.APIKey = redact(c.Docs.APIKey)
	redacted.Audit.DatabaseURL = redactURL(c.Audit.DatabaseURL)
	return fmt.Sprintf("%+v", redacted)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***redacted***"
}

func redactURL(s string) string {
	if s == "" {
		return ""
	}
	if idx := strings.Index(s, "@"); idx != -1 {
		return "***redacted***" + s[idx:]
	}
	return "***redacted***"
}
