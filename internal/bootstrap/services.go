package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/a11y-scanner/config"
	"github.com/target/a11y-scanner/internal/adapters/reconciler"
	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/data"
	httpx "github.com/target/a11y-scanner/internal/http"
	"github.com/target/a11y-scanner/internal/observability/statsd"
	"github.com/target/a11y-scanner/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Scans      *service.ScanService
	Runner     *service.ScanRunner
	Reconciler *reconciler.Runner
	Verifier   core.TokenVerifier
	Readiness  []httpx.ReadinessCheck
	Metrics    statsd.Sink

	closeMetrics func() error
}

// Close releases resources owned by the container.
func (c *ServiceContainer) Close() error {
	if c.closeMetrics == nil {
		return nil
	}
	return c.closeMetrics()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices builds the scan service, runner and reconciler from configuration.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, closeMetrics := buildMetricsSink(cfg.Observability.Metrics, logger)
	container := ServiceContainer{Metrics: metrics, closeMetrics: closeMetrics}

	store, err := buildScanStore(cfg.Storage, deps.DB, logger)
	if err != nil {
		return container, err
	}
	reports, err := BuildReportStore(cfg.Storage, deps.RedisClient)
	if err != nil {
		return container, err
	}
	cache := buildScanCache(cfg.Storage, deps.RedisClient, logger)

	auditor, err := BuildAuditor(AuditorConfig{
		Audit:     cfg.Audit,
		Encryptor: CreateEncryptor(cfg.SecretsEncryptionKey, logger),
		Logger:    logger,
	})
	if err != nil {
		return container, err
	}

	runner, err := service.NewScanRunner(service.ScanRunnerOptions{
		Repo:    store,
		Auditor: auditor,
		Reports: reports,
		Config:  cfg.Runner,
		Cache:   cache,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return container, fmt.Errorf("create scan runner: %w", err)
	}
	container.Runner = runner

	scans, err := service.NewScanService(service.ScanServiceOptions{
		Repo:       store,
		Dispatcher: runner,
		Cache:      cache,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return container, fmt.Errorf("create scan service: %w", err)
	}
	container.Scans = scans

	rec, err := NewReconciler(ReconcilerConfig{
		Repo:       store,
		Dispatcher: runner,
		Config:     cfg.Reconciler,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return container, err
	}
	container.Reconciler = rec

	verifier, err := BuildTokenVerifier(ctx, cfg.Auth, logger)
	if err != nil {
		return container, err
	}
	container.Verifier = verifier
	container.Readiness = readinessChecks(deps.DB, deps.RedisClient)

	return container, nil
}

func readinessChecks(db *sql.DB, client redis.UniversalClient) []httpx.ReadinessCheck {
	var checks []httpx.ReadinessCheck
	if db != nil {
		checks = append(checks, httpx.ReadinessCheck{Name: "postgres", Check: db.PingContext})
	}
	if client != nil {
		checks = append(checks, httpx.ReadinessCheck{Name: "redis", Check: data.NewRedisCacheRepo(client).Health})
	}
	return checks
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for background services to stop.
	shutdownWaitTimeout = 15 * time.Second
)

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

func launchBackground(ctx context.Context, logger *slog.Logger, errCh chan<- error, descriptor backgroundService) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case errCh <- errMsg:
			case <-ctx.Done():
			default:
				logger.WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
			}
		}
	}()

	logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, enabled map[config.ServiceMode]bool) []backgroundService {
	var services []backgroundService
	if enabled[config.ServiceModeReconciler] && cfg.Services.Reconciler != nil {
		services = append(services, backgroundService{
			mode:  config.ServiceModeReconciler,
			name:  "reconciler",
			start: cfg.Services.Reconciler.Run,
		})
	}
	return services
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	reconcileOnStart(serviceCtx, cfg, logger)

	errCh := make(chan error, len(enabled)+1)

	var server *http.Server
	if enabled[config.ServiceModeHTTP] {
		server = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		}, errCh)
	}

	var handles []backgroundServiceHandle
	for _, svc := range buildBackgroundServices(cfg, enabled) {
		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: launchBackground(serviceCtx, logger, errCh, svc),
		})
	}

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  server,
		httpTimeout: cfg.Config.HTTP.ShutdownTimeout,
		runner:      cfg.Services.Runner,
		logger:      logger,
		backgrounds: handles,
	})
}

// reconcileOnStart runs a single sweep before serving so scans orphaned by a
// previous process are recovered promptly.
func reconcileOnStart(ctx context.Context, cfg *ServiceOrchestrationConfig, logger *slog.Logger) {
	if !cfg.Config.Reconciler.ReconcileOnStart || cfg.Services.Reconciler == nil {
		return
	}
	if err := cfg.Services.Reconciler.ReconcileOnce(ctx); err != nil {
		logger.WarnContext(ctx, "startup reconcile failed", "error", err)
		return
	}
	logger.InfoContext(ctx, "startup reconcile completed")
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	httpTimeout time.Duration
	runner      *service.ScanRunner
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops intake first, then drains the runner so accepted scans
// reach a terminal status, then waits for background services.
func gracefulStop(cfg shutdownConfig) error {
	var errs []error

	if cfg.httpServer != nil {
		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: context.WithoutCancel(cfg.ctx),
			Server:  cfg.httpServer,
			Timeout: cfg.httpTimeout,
			Logger:  cfg.logger,
		}); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	if cfg.runner != nil {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.ctx), shutdownWaitTimeout)
		defer cancel()
		if err := cfg.runner.Shutdown(drainCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain scan runner: %w", err))
		} else {
			cfg.logger.Info("scan runner drained")
		}
	}

	return errors.Join(errs...)
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	timer := time.NewTimer(shutdownWaitTimeout)
	defer timer.Stop()
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-timer.C:
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
