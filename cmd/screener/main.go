package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/sepa-screener/internal/api"
	"github.com/irfndi/sepa-screener/internal/cache"
	"github.com/irfndi/sepa-screener/internal/config"
	"github.com/irfndi/sepa-screener/internal/database"
	"github.com/irfndi/sepa-screener/internal/logging"
	"github.com/irfndi/sepa-screener/internal/middleware"
	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/services"
	"github.com/irfndi/sepa-screener/internal/telemetry"
)

const (
	serviceName = "sepa-screener"
	version     = "1.0.0"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitNoPriceData = 3
)

type options struct {
	date    time.Time
	serve   bool
	skipRun bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	opts, err := parseArgs(args, time.Now(), stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}

	return exitCode(start(cfg, opts))
}

// parseArgs reads the command line. The analysis date defaults to today in
// UTC.
func parseArgs(args []string, now time.Time, output io.Writer) (options, error) {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(output)
	date := fs.String("date", "", "analysis date (YYYY-MM-DD), default today")
	serve := fs.Bool("serve", false, "serve the read API after the run")
	skipRun := fs.Bool("skip-run", false, "do not run an analysis; requires -serve")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if *skipRun && !*serve {
		return options{}, errors.New("-skip-run requires -serve")
	}

	opts := options{date: models.DateOnly(now.UTC()), serve: *serve, skipRun: *skipRun}
	if *date != "" {
		d, err := models.ParseDate(*date)
		if err != nil {
			return options{}, err
		}
		opts.date = d
	}
	return opts, nil
}

// exitCode maps a run result to the process exit status. A date without
// price data (weekend, holiday) is distinguished from a failure.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case services.IsNoPriceData(err):
		return exitNoPriceData
	default:
		return exitFailure
	}
}

func start(cfg *config.Config, opts options) error {
	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)

	if err := telemetry.InitTelemetry(telemetry.TelemetryConfig{
		Enabled:      cfg.Telemetry.Enabled,
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Telemetry.SampleRatio,
		LogLevel:     cfg.LogLevel,
	}); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(); err != nil {
			logger.WithError(err).Warn("Failed to shutdown telemetry")
		}
	}()

	events, otlpLogger := newEventLogger(cfg)
	if otlpLogger != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otlpLogger.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresConnection(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	recovery := services.NewErrorRecoveryManager(logger)

	redis, err := database.NewRedisConnectionWithRetry(cfg.Redis, recovery)
	if err != nil {
		return err
	}
	defer redis.Close()

	repos := database.NewRepositories(database.NewTracedDB(db.Pool))
	ttl := config.Duration(cfg.Redis.CacheTTL, 24*time.Hour)
	composites := cache.NewCompositeCache(redis.Client, ttl, logger)
	reports := cache.NewRunReportCache(redis.Client, ttl, logger)

	if !opts.skipRun {
		var notifier services.Notifier
		if cfg.Telegram.Enabled() {
			b, err := services.NewTelegramBot(cfg.Telegram.BotToken)
			if err != nil {
				logger.WithError(err).Warn("Telegram disabled for this run")
			} else {
				notifier = services.NewTelegramNotifier(b, cfg.Telegram, cfg.Notifications.Language, recovery, logger)
			}
		}

		svc := services.NewAnalysisService(cfg, services.StoresFromRepositories(repos),
			composites, reports, notifier, recovery, events, logger)
		if _, err := svc.Run(ctx, opts.date); err != nil {
			if !opts.serve || ctx.Err() != nil {
				return err
			}
			logger.WithError(err).Error("Analysis run failed, serving previous results")
		}
	}

	if !opts.serve {
		return nil
	}

	router := newRouter(cfg, api.Dependencies{
		DB:            db,
		Redis:         redis,
		Scorecards:    repos.Scorecards,
		Notifications: repos.Notifications,
		Watchlist:     repos.Watchlist,
		RunReports:    reports,
		Composites:    composites,
		Breakers:      recovery,
		Version:       version,
	}, logger, events)

	return serve(ctx, cfg.Server.Port, router, logger, events)
}

func newEventLogger(cfg *config.Config) (*logging.StandardLogger, *logging.OTLPLogger) {
	if !cfg.Telemetry.LogExport {
		return logging.NewStandardLogger(cfg.LogLevel, cfg.Environment), nil
	}
	return logging.NewStandardOTLPLogger(logging.OTLPConfig{
		Enabled:        true,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
	})
}

func newRouter(cfg *config.Config, deps api.Dependencies, logger *logrus.Logger, events logging.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Tracing(serviceName))
	router.Use(middleware.RequestLogger(logger, events))
	api.SetupRoutes(router, cfg, deps)
	return router
}

func serve(ctx context.Context, port int, handler http.Handler, logger *logrus.Logger, events logging.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		events.LogStartup(serviceName, version, port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	events.LogShutdown(serviceName, "signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exited gracefully")
	return nil
}
