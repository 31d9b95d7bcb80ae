package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/a11y-scanner/config"
	"github.com/target/a11y-scanner/internal/adapters/audit"
	"github.com/target/a11y-scanner/internal/adapters/oidc"
	"github.com/target/a11y-scanner/internal/adapters/reconciler"
	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/data"
	"github.com/target/a11y-scanner/internal/data/cryptoutil"
	"github.com/target/a11y-scanner/internal/observability/statsd"
)

// scanStore bundles the two views of the configured scan store.
type scanStore interface {
	core.ScanRepository
	core.ScanReconcileRepository
}

// buildScanStore returns the Postgres or in-memory scan store.
//
//nolint:ireturn // both implementations satisfy the same pair of ports.
func buildScanStore(cfg config.StorageConfig, db *sql.DB, logger *slog.Logger) (scanStore, error) {
	switch cfg.ScanStore {
	case config.ScanStoreMemory:
		logger.Warn("using in-memory scan store; scans are lost on restart")
		return data.NewMemoryScanRepo(nil), nil
	case config.ScanStorePostgres:
		if db == nil {
			return nil, errors.New("postgres scan store requires a database connection")
		}
		return data.NewScanRepo(db, data.ScanRepoOptions{Logger: logger}), nil
	default:
		return nil, fmt.Errorf("unsupported scan store %q", cfg.ScanStore)
	}
}

// BuildReportStore returns the filesystem or Redis report store.
//
//nolint:ireturn // callers depend on the core.ReportStore port only.
func BuildReportStore(cfg config.StorageConfig, client redis.UniversalClient) (core.ReportStore, error) {
	switch cfg.ReportStore {
	case config.ReportStoreRedis:
		if client == nil {
			return nil, errors.New("redis report store requires a redis connection")
		}
		return data.NewRedisReportStore(data.NewRedisCacheRepo(client), cfg.ReportsRedisTTL), nil
	case config.ReportStoreFile:
		store, err := data.NewFileReportStore(cfg.ReportsDir)
		if err != nil {
			return nil, fmt.Errorf("create file report store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported report store %q", cfg.ReportStore)
	}
}

// buildScanCache returns a Redis-backed cache of terminal scans, or nil when disabled.
func buildScanCache(cfg config.StorageConfig, client redis.UniversalClient, logger *slog.Logger) *core.ScanCache {
	if !cfg.CacheEnabled || client == nil {
		return nil
	}
	return core.NewScanCache(core.ScanCacheOptions{
		Cache:  data.NewRedisCacheRepo(client),
		TTL:    cfg.CacheTTL,
		Logger: logger,
	})
}

// AuditorConfig contains configuration for building the audit capability.
type AuditorConfig struct {
	Audit     config.AuditConfig
	Encryptor cryptoutil.Encryptor
	Logger    *slog.Logger
}

// BuildAuditor creates the configured auditor. A "v1:" client secret is
// decrypted with the encryptor first.
//
//nolint:ireturn // callers depend on the core.Auditor port only.
func BuildAuditor(cfg AuditorConfig) (core.Auditor, error) {
	switch cfg.Audit.Mode {
	case config.AuditModeRemote:
		remote := cfg.Audit.Remote
		secret, err := ResolveSecret(resolveEncryptor(cfg.Encryptor, cfg.Logger), remote.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("audit client secret: %w", err)
		}
		auditor, err := audit.NewRemoteAuditor(audit.RemoteAuditorOptions{
			Endpoint:       remote.Endpoint,
			Timeout:        remote.Timeout,
			ViolationsExpr: remote.ViolationsExpr,
			TokenURL:       remote.TokenURL,
			ClientID:       remote.ClientID,
			ClientSecret:   secret,
			Scopes:         remote.Scopes,
			Logger:         cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create remote auditor: %w", err)
		}
		return auditor, nil
	default:
		if cfg.Logger != nil {
			cfg.Logger.Warn("using stub auditor; reports contain a fixed violation")
		}
		return &audit.StubAuditor{}, nil
	}
}

func resolveEncryptor(enc cryptoutil.Encryptor, logger *slog.Logger) cryptoutil.Encryptor { //nolint:ireturn // pass-through
	if enc != nil {
		return enc
	}
	if logger != nil {
		logger.Warn("encryptor not configured, using noop encryptor")
	}
	return &cryptoutil.NoopEncryptor{}
}

// BuildTokenVerifier returns a bearer token verifier when AUTH_MODE=oidc and
// nil when authentication is disabled.
//
//nolint:ireturn // nil interface signals "auth disabled" to the router.
func BuildTokenVerifier(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (core.TokenVerifier, error) {
	if cfg.Mode != config.AuthModeOIDC {
		if logger != nil {
			logger.InfoContext(ctx, "bearer authentication disabled", "mode", cfg.Mode)
		}
		return nil, nil
	}

	v, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
		IssuerURL: cfg.OIDC.IssuerURL,
		ClientID:  cfg.OIDC.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("create oidc verifier: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "bearer authentication enabled", "issuer", cfg.OIDC.IssuerURL)
	}
	return v, nil
}

// buildMetricsSink returns a statsd client when metrics are enabled, otherwise nil.
//
//nolint:ireturn // a nil Sink disables emission everywhere.
func buildMetricsSink(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (statsd.Sink, func() error) {
	noop := func() error { return nil }
	if !cfg.IsEnabled() {
		return nil, noop
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil, noop
	}
	return client, client.Close
}

// ReconcilerConfig contains configuration for the reconciler.
type ReconcilerConfig struct {
	Repo       core.ScanReconcileRepository
	Dispatcher core.ScanDispatcher
	Config     config.ReconcilerConfig
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// NewReconciler builds the reconciler runner.
func NewReconciler(cfg ReconcilerConfig) (*reconciler.Runner, error) {
	runner, err := reconciler.NewRunner(reconciler.RunnerOptions{
		Repo:       cfg.Repo,
		Dispatcher: cfg.Dispatcher,
		Config:     cfg.Config,
		Logger:     cfg.Logger,
		Metrics:    cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create reconciler runner: %w", err)
	}
	return runner, nil
}
