// Package reconciler provides adapters for running the scan reconciliation sweep.
package reconciler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/a11y-scanner/config"
	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/data"
	"github.com/target/a11y-scanner/internal/observability/statsd"
	"github.com/target/a11y-scanner/internal/service"
)

// Runner constructs the reconciler service and runs its loop.
type Runner struct {
	reconciler *service.ReconcilerService
	logger     *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Dispatcher core.ScanDispatcher // Required: receives orphaned pending scans
	Config     config.ReconcilerConfig
	Logger     *slog.Logger
	Metrics    statsd.Sink

	// One of Repo or DB is required. Repo wins when both are set.
	Repo core.ScanReconcileRepository
	DB   *sql.DB
}

// NewRunner creates a new reconciler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	repo := opts.Repo
	if repo == nil {
		repo = data.NewScanRepo(opts.DB, data.ScanRepoOptions{Logger: opts.Logger})
	}

	svc, err := service.NewReconcilerService(service.ReconcilerServiceOptions{
		Repo:       repo,
		Dispatcher: opts.Dispatcher,
		Config:     opts.Config,
		Logger:     opts.Logger,
		Metrics:    opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reconciler service: %w", err)
	}

	return &Runner{reconciler: svc, logger: opts.Logger}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Repo == nil && opts.DB == nil {
		return errors.New("reconcile repository or database connection is required")
	}
	if opts.Dispatcher == nil {
		return errors.New("scan dispatcher is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// Run starts the reconcile loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reconciler runner")
	return r.reconciler.Run(ctx)
}

// ReconcileOnce performs a single sweep, used at startup before serving.
func (r *Runner) ReconcileOnce(ctx context.Context) error {
	return r.reconciler.RunOnce(ctx)
}
