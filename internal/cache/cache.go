// Package cache provides a bounded key-value cache used by the auth
// resolver (tier lookups) and the documentation proxy (upstream doc
// fetches), with in-memory and Redis-backed implementations behind one
// interface.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/snapback-dev/mcp-server/internal/config"
)

// Backend names accepted by config.CacheConfig.Driver.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var (
	// ErrKeyNotFound is returned when a requested key is absent or expired.
	ErrKeyNotFound = errors.New("cache: key not found")
	// ErrCacheClosed is returned when an operation is attempted after Close.
	ErrCacheClosed = errors.New("cache: closed")
)

// Cache is the contract shared by the memory and Redis backends.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	GetWithTTL(ctx context.Context, key string) (value []byte, ttl time.Duration, err error)

	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error
	MDelete(ctx context.Context, keys []string) (int64, error)

	Keys(ctx context.Context, pattern string) ([]string, error)
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)

	Stats(ctx context.Context) (*Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Stats reports cache health for the /metrics and diagnostics surfaces.
type Stats struct {
	TotalKeys    int64
	Hits         int64
	Misses       int64
	HitRate      float64
	MemoryBytes  int64
	Evictions    int64
	KeysByPrefix map[string]int64
	Backend      string
}

// Options configures a Cache built via New.
type Options struct {
	Backend    string
	DefaultTTL time.Duration

	MaxEntries      int
	MaxBytes        int64
	CleanupInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

// DefaultOptions returns an in-memory cache configuration with sensible
// bounds. The doc proxy and auth resolver store payloads of wildly
// different size (a JWT claim versus a full documentation page), so
// MaxBytes bounds the memory backend's footprint the way MaxEntries
// alone cannot.
func DefaultOptions() *Options {
	return &Options{
		Backend:         BackendMemory,
		DefaultTTL:      5 * time.Minute,
		MaxEntries:      100000,
		MaxBytes:        64 << 20,
		CleanupInterval: 1 * time.Minute,
		RedisAddr:       "localhost:6379",
		RedisPoolSize:   10,
	}
}

// FromConfig maps a config.CacheConfig onto cache Options.
func FromConfig(cfg config.CacheConfig) *Options {
	return &Options{
		Backend:         cfg.Driver,
		DefaultTTL:      cfg.DefaultTTL,
		MaxEntries:      cfg.MaxEntries,
		MaxBytes:        cfg.MaxBytes,
		CleanupInterval: cfg.CleanupEvery,
		RedisAddr:       cfg.RedisAddr,
		RedisDB:         cfg.RedisDB,
		RedisPoolSize:   10,
	}
}

// New builds a Cache for opts.Backend, defaulting to BackendMemory for an
// unrecognized or empty value.
func New(opts *Options) (Cache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	switch opts.Backend {
	case BackendRedis:
		return NewRedisCache(opts)
	case BackendMemory, "":
		return NewMemoryCache(opts), nil
	default:
		return NewMemoryCache(opts), nil
	}
}

// MustNew calls New and panics on error.
func MustNew(opts *Options) Cache {
	c, err := New(opts)
	if err != nil {
		panic(err)
	}
	return c
}
