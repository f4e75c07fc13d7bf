package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/zonal/internal/adapters/http/api"
	"github.com/okian/zonal/internal/adapters/http/site"
	"github.com/okian/zonal/internal/adapters/http/swagger"
	"github.com/okian/zonal/internal/adapters/raster"
	app "github.com/okian/zonal/internal/app"
	"github.com/okian/zonal/internal/config"
	"github.com/okian/zonal/internal/domain/aoi"
	"github.com/okian/zonal/internal/domain/dataset"
	"github.com/okian/zonal/pkg/logger"
	"github.com/okian/zonal/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	writeTimeoutSlack         = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := run(); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Initialize logging
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(cfg, loggerInstance)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(cfg, newMux(ctx, svc, loggerInstance))

	// Start the HTTP server
	serveErr := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	default:
		return nil
	}
}

// newService wires the catalog, raster backend and validation policy from cfg.
func newService(cfg *config.Config, log logger.Logger) (*app.Service, error) {
	registry, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}

	metric, err := aoi.ParseMetric(cfg.AreaMetric)
	if err != nil {
		return nil, err
	}

	aggregator := raster.NewAggregator(
		newBackend(cfg, registry, log),
		raster.WithTimeout(time.Duration(cfg.BackendTimeoutMS)*time.Millisecond),
		raster.WithLogger(log.Named("raster")),
	)

	return app.New(
		app.WithLogger(log),
		app.WithRegistry(registry),
		app.WithAggregator(aggregator),
		app.WithPolicy(aoi.NewPolicy(metric, cfg.MaxArea)),
		app.WithTopN(cfg.DefaultTopN, cfg.MaxTopN),
	), nil
}

func newRegistry(cfg *config.Config) (*dataset.Registry, error) {
	if cfg.CatalogPath == "" {
		return dataset.Default()
	}
	registry, err := dataset.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", cfg.CatalogPath, err)
	}
	return registry, nil
}

func newBackend(cfg *config.Config, registry *dataset.Registry, log logger.Logger) raster.Backend {
	if cfg.Backend == config.BackendHTTP {
		return raster.NewHTTPBackend(cfg.BackendURL,
			raster.WithRateLimit(cfg.BackendRatePerSec, cfg.BackendBurst),
			raster.WithBreaker(cfg.BreakerFailureRatio, uint32(cfg.BreakerMinRequests), //nolint:gosec // validated positive
				time.Duration(cfg.BreakerOpenTimeoutMS)*time.Millisecond),
			raster.WithHTTPLogger(log.Named("raster.http")),
		)
	}
	return raster.NewSimulatedBackend(registry, raster.WithLatencyRange(
		time.Duration(cfg.SimulatedLatencyMinMS)*time.Millisecond,
		time.Duration(cfg.SimulatedLatencyMaxMS)*time.Millisecond,
	))
}

// newMux registers the landing page, docs and business API routes.
func newMux(ctx context.Context, svc *app.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Landing page at / and API docs under /api-docs
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc.Registry(), svc, api.WithLogger(log.Named("api")))
	apiServer.Register(ctx, mux)
	return mux
}

// newHTTPServer sizes the write timeout so a slow backend round trip still
// gets its answer written.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      time.Duration(cfg.BackendTimeoutMS)*time.Millisecond + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges derived from service stats.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if datasets, ok := stats["datasets"].(int); ok {
		metrics.UpdateDatasetsRegistered(datasets)
	}
}
