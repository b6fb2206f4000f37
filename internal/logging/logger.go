// Package logging configures the process-wide structured logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process-wide logger. It is replaced by Init/InitWithConfig and
// is safe to read concurrently once initialization has completed; package
// init sets a sane stderr/text default so early-boot log lines before
// config is loaded never panic on a nil logger.
var Log *slog.Logger

func init() {
	Log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Config controls where log lines go and how they are encoded.
type Config struct {
	Level      string `koanf:"level"`       // debug|info|warn|error
	Format     string `koanf:"format"`      // json|text
	Output     string `koanf:"output"`      // stdout|stderr|file
	FilePath   string `koanf:"file_path"`   // used when Output == "file"
	MaxSizeMB  int    `koanf:"max_size_mb"` // lumberjack rotation
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
	AddSource  bool   `koanf:"add_source"`
}

// DefaultConfig returns development-friendly defaults: text encoding to
// stderr at info level.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		Output:     "stderr",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
		Compress:   true,
	}
}

// Init builds the package-level logger from cfg and installs it as the
// default for both this package and slog's own default logger.
func Init(cfg Config) error {
	logger, err := build(cfg)
	if err != nil {
		return err
	}
	Log = logger
	slog.SetDefault(logger)
	return nil
}

func build(cfg Config) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	writer, err := resolveWriter(cfg)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "", "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	return slog.New(handler), nil
}

func resolveWriter(cfg Config) (io.Writer, error) {
	switch cfg.Output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("logging: output=file requires file_path")
		}
		return &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}, nil
	default:
		return nil, fmt.Errorf("logging: unknown output %q", cfg.Output)
	}
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", level)
	}
}

type ctxKey struct{}

// WithContext attaches logger to ctx so downstream calls can recover it
// with FromContext, carrying request-scoped fields such as sessionId.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext recovers a logger attached by WithContext, falling back to
// the package-level Log if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return Log
}

// WithSession returns a logger tagged with a session id, the identifier
// that threads through a tool call's telemetry events and error logs.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("sessionId", sessionID)
}

// WithTool returns a logger tagged with the name of the tool being invoked.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With("tool", tool)
}
