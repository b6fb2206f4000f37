// Command snapback-mcp runs the code-safety coprocessor as either a
// stdio JSON-RPC server (the default, for embedding in an editor or
// agent CLI) or an HTTP+SSE server (for a shared, multi-client
// deployment), selected by transport.mode.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snapback-dev/mcp-server/internal/analyzer"
	"github.com/snapback-dev/mcp-server/internal/auth"
	"github.com/snapback-dev/mcp-server/internal/cache"
	"github.com/snapback-dev/mcp-server/internal/config"
	"github.com/snapback-dev/mcp-server/internal/docproxy"
	"github.com/snapback-dev/mcp-server/internal/featureflags"
	"github.com/snapback-dev/mcp-server/internal/logging"
	"github.com/snapback-dev/mcp-server/internal/mcpserver"
	"github.com/snapback-dev/mcp-server/internal/metrics"
	"github.com/snapback-dev/mcp-server/internal/perf"
	"github.com/snapback-dev/mcp-server/internal/ratelimit"
	"github.com/snapback-dev/mcp-server/internal/registry"
	"github.com/snapback-dev/mcp-server/internal/router"
	"github.com/snapback-dev/mcp-server/internal/sanitizer"
	"github.com/snapback-dev/mcp-server/internal/session"
	"github.com/snapback-dev/mcp-server/internal/snapshot"
	"github.com/snapback-dev/mcp-server/internal/telemetry"
	"github.com/snapback-dev/mcp-server/internal/transport"
	"github.com/snapback-dev/mcp-server/internal/transport/middleware"
	"github.com/snapback-dev/mcp-server/internal/validate"
)

// appVersion is overridden at build time with -ldflags.
var appVersion = "dev"

const (
	exitOK            = 0
	exitConfigError   = 1
	exitTransportInit = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadWithServiceDefaults()
	if err != nil {
		fmt.Fprintf(os.Stderr, "snapback-mcp: failed to load config: %v\n", err)
		return exitConfigError
	}

	if err := logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		AddSource:  cfg.Log.AddSource,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "snapback-mcp: failed to init logging: %v\n", err)
		return exitConfigError
	}
	logger := logging.Log
	logger.Info("starting snapback-mcp", "version", appVersion, "environment", cfg.App.Environment, "transport", cfg.Transport.Mode)
	logger.Debug("loaded configuration", "config", cfg.String())

	devMode := cfg.IsDevelopment()

	m := metrics.InitMetrics("snapback", "mcp")
	m.ServiceInfo.WithLabelValues(appVersion, cfg.App.Environment).Set(1)

	sinks, err := buildTelemetrySinks(cfg.Audit, logger)
	if err != nil {
		logger.Error("failed to build telemetry sinks", "error", err)
		return exitConfigError
	}
	telemetryBus := telemetry.NewBus(telemetry.DefaultBusConfig(), sinks...)
	defer telemetryBus.Close()

	appCache := cache.MustNew(cache.FromConfig(cfg.Cache))
	defer appCache.Close()

	flags := featureflags.NewStore(nil, nil, 0)

	verifier := auth.NewVerifier(auth.JWTConfig{
		SecretKey: os.Getenv("SNAPBACK_JWT_SECRET"),
		Issuer:    os.Getenv("SNAPBACK_JWT_ISSUER"),
	})
	resolver := auth.NewResolver(auth.ResolverConfig{
		Verifier:    verifier,
		Permissions: registry.Permissions(),
		DevMode:     devMode,
	})
	defer resolver.Close()

	reg, err := registry.New(nil)
	if err != nil {
		logger.Error("failed to build tool registry", "error", err)
		return exitConfigError
	}

	pathValidator := validate.NewPathValidator(telemetryBus)

	workspaceRoot := cfg.App.WorkspaceRoot
	if workspaceRoot == "" {
		workspaceRoot = "."
	}
	snapshots, err := snapshot.NewStore(workspaceRoot, pathValidator, cfg.RequireWorkspace())
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		return exitConfigError
	}

	docs := docproxy.New(docproxy.Config{
		BaseURL: cfg.Docs.BaseURL,
		Cache:   appCache,
	})

	var upstream *router.UpstreamClient
	if cfg.Upstream.BaseURL != "" {
		upstream = router.NewUpstreamClient(router.UpstreamClientConfig{
			BaseURL:         cfg.Upstream.BaseURL,
			APIKey:          cfg.Upstream.APIKey,
			Timeout:         cfg.Upstream.Timeout,
			MaxRetries:      cfg.Upstream.MaxRetries,
			CircuitFailures: cfg.Upstream.CircuitFailures,
			CircuitRecovery: cfg.Upstream.CircuitRecovery,
		})
	}

	localAnalyzer := analyzer.NewFacade(
		analyzer.NewSecretsDetector(),
		analyzer.NewDangerousAPIDetector(),
		analyzer.NewDependencyHygieneDetector(),
		analyzer.NewEnvHygieneDetector(),
	)
	riskRouter := router.New(localAnalyzer, upstream, flags, logger)

	perfWrapper := perf.New(logger, m, nil)
	errSanitizer := sanitizer.New(devMode, logger)

	server := mcpserver.NewServer(mcpserver.Config{
		Registry:  reg,
		Resolver:  resolver,
		Router:    riskRouter,
		Snapshots: snapshots,
		Docs:      docs,
		Sanitizer: errSanitizer,
		Perf:      perfWrapper,
		Telemetry: telemetryBus,
		Logger:    logger,
	})

	toolLimiter, err := ratelimit.New(&ratelimit.Config{
		Requests: 600,
		Window:   time.Minute,
		Strategy: "sliding_window",
		Backend:  "memory",
	})
	if err != nil {
		logger.Error("failed to build tool-call rate limiter", "error", err)
		return exitConfigError
	}
	defer toolLimiter.Close()

	handler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RateLimit(toolLimiter, middleware.SessionKey),
		middleware.Metrics(m),
		middleware.Logging(logger),
		middleware.Auth(resolver, transport.RawTokenFrom),
	)(server.Dispatch)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.Transport.Mode {
	case "http":
		return runHTTP(ctx, cfg, handler, appCache, resolver, logger)
	default:
		return runStdio(ctx, handler, logger)
	}
}

func runStdio(ctx context.Context, handler transport.Handler, logger *slog.Logger) int {
	srv := transport.NewStdioServer(os.Stdin, os.Stdout, handler, logger)
	if err := srv.Serve(ctx); err != nil {
		logger.Error("stdio transport stopped with an error", "error", err)
		return exitTransportInit
	}
	logger.Info("stdio transport stopped cleanly")
	return exitOK
}

func runHTTP(ctx context.Context, cfg *config.Config, handler transport.Handler, appCache cache.Cache, resolver *auth.Resolver, logger *slog.Logger) int {
	sessions := session.NewRegistry()

	ipLimiter, err := ratelimit.New(&ratelimit.Config{
		Requests: 100,
		Window:   time.Minute,
		Strategy: "sliding_window",
		Backend:  "memory",
	})
	if err != nil {
		logger.Error("failed to build transport rate limiter", "error", err)
		return exitTransportInit
	}
	defer ipLimiter.Close()

	httpServer := transport.NewHTTPServer(transport.HTTPConfig{
		Addr:            cfg.Transport.HTTPAddr,
		Handler:         handler,
		Sessions:        sessions,
		Metrics:         metrics.Get(),
		Logger:          logger,
		AppName:         cfg.App.Name,
		AppVersion:      appVersion,
		MaxBodyBytes:    cfg.Transport.MaxBodyBytes,
		ShutdownTimeout: cfg.Transport.ShutdownTimeout,
		HealthChecks: map[string]transport.HealthCheck{
			"cache": func(ctx context.Context) error {
				_, err := appCache.Stats(ctx)
				return err
			},
		},
	})

	wrapped := middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.Transport.CORSAllowOrigins})(
		transport.RequireCredential(resolver, cfg.IsDevelopment())(
			transport.IPRateLimit(ipLimiter)(httpServer.Mux()),
		),
	)
	httpServer.SetHandler(wrapped)

	if err := httpServer.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http transport stopped with an error", "error", err)
		return exitTransportInit
	}
	logger.Info("http transport stopped cleanly")
	return exitOK
}

func buildTelemetrySinks(cfg config.AuditConfig, logger *slog.Logger) ([]telemetry.Sink, error) {
	if cfg.Driver == "postgres" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sink, err := newPostgresSink(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Debug("telemetry sink configured", "driver", cfg.Driver)
		return []telemetry.Sink{sink}, nil
	}

	sink, err := telemetry.NewSink(cfg.Driver, cfg.FilePath)
	if err != nil {
		return nil, err
	}
	logger.Debug("telemetry sink configured", "driver", cfg.Driver)
	return []telemetry.Sink{sink}, nil
}

// newPostgresSink applies pending migrations against connString on a
// short-lived pool, then hands off to a PostgresSink's own long-lived
// pool for the life of the process.
func newPostgresSink(ctx context.Context, connString string) (telemetry.Sink, error) {
	migrationPool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to open migration pool: %w", err)
	}
	defer migrationPool.Close()

	if err := telemetry.NewMigrator(migrationPool).Up(ctx); err != nil {
		return nil, err
	}

	return telemetry.NewPostgresSink(ctx, connString)
}
