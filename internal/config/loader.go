package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const defaultEnvPrefix = "SNAPBACK_"

// Loader builds a Config by layering, in increasing precedence: built-in
// defaults, an optional YAML file, and environment variables.
type Loader struct {
	envPrefix   string
	configPaths []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths sets the YAML file paths tried in order; the first one
// that exists on disk is loaded. Missing files are not an error.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix overrides the default SNAPBACK_ environment variable
// prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// NewLoader constructs a Loader with the given options applied over
// sensible defaults (SNAPBACK_ prefix, no config file paths).
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds and validates a Config.
func (l *Loader) Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	for _, path := range l.configPaths {
		if path == "" {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if isNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("config: loading file %s: %w", path, err)
		}
		break
	}

	envProvider := env.Provider(l.envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, l.envPrefix)), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad calls Load and panics on error; intended for cmd/ wiring where
// a configuration failure is a fatal startup condition anyway.
func (l *Loader) MustLoad() *Config {
	cfg, err := l.Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func isNotExist(err error) bool {
	return strings.Contains(err.Error(), "no such file") || strings.Contains(err.Error(), "cannot find the file")
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":               "snapback-mcp",
		"app.environment":        "development",
		"app.workspace_root":     ".",
		"app.require_workspace":  false,

		"transport.mode":              "stdio",
		"transport.http_addr":         ":8787",
		"transport.cors_allow_origins": []string{"*"},
		"transport.rate_limit_window": 1 * time.Minute,
		"transport.rate_limit_max":    120,
		"transport.max_body_bytes":    int64(1 << 20),
		"transport.shutdown_timeout":  10 * time.Second,

		"upstream.base_url":              "",
		"upstream.api_key":               "",
		"upstream.timeout":               5 * time.Second,
		"upstream.max_retries":           3,
		"upstream.circuit_failures":      5,
		"upstream.circuit_recovery":      30 * time.Second,
		"upstream.circuit_half_open_max": 2,

		"docs.base_url": "",
		"docs.api_key":  "",
		"docs.ttl":      15 * time.Minute,

		"cache.driver":        "memory",
		"cache.redis_addr":    "",
		"cache.redis_db":      0,
		"cache.max_entries":   10000,
		"cache.max_bytes":     int64(64 << 20),
		"cache.default_ttl":   10 * time.Minute,
		"cache.cleanup_every": 1 * time.Minute,

		"audit.driver":      "stdout",
		"audit.file_path":   "",
		"audit.database_url": "",
		"audit.buffer_size": 1024,
		"audit.batch_size":  50,
		"audit.flush_every": 5 * time.Second,

		"log.level":        "info",
		"log.format":        "json",
		"log.output":        "stderr",
		"log.file_path":     "",
		"log.max_size_mb":   100,
		"log.max_backups":   5,
		"log.max_age_days":  28,
		"log.compress":      true,
		"log.add_source":    false,
	}
}

// LoadWithServiceDefaults is a convenience for cmd/snapback-mcp: it looks
// for config in the conventional locations (./snapback.yaml,
// /etc/snapback/snapback.yaml) and applies the standard environment
// prefix.
func LoadWithServiceDefaults() (*Config, error) {
	loader := NewLoader(
		WithConfigPaths("./snapback.yaml", "/etc/snapback/snapback.yaml"),
		WithEnvPrefix(defaultEnvPrefix),
	)
	return loader.Load()
}
