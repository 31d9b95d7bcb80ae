// Package service holds the scan lifecycle: submission, background execution
// and the reconciliation sweep.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/domain/model"
	"github.com/target/a11y-scanner/internal/observability/metrics"
	"github.com/target/a11y-scanner/internal/observability/statsd"
)

// ScanServiceOptions groups dependencies for ScanService.
type ScanServiceOptions struct {
	Repo       core.ScanRepository // Required
	Dispatcher core.ScanDispatcher // Required
	Cache      *core.ScanCache     // Optional
	Logger     *slog.Logger        // Optional
	Metrics    statsd.Sink         // Optional
}

// ScanService is the entry point for submitting and reading scans.
type ScanService struct {
	repo       core.ScanRepository
	dispatcher core.ScanDispatcher
	cache      *core.ScanCache
	logger     *slog.Logger
	metrics    statsd.Sink
}

// NewScanService constructs a ScanService.
func NewScanService(opts ScanServiceOptions) (*ScanService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ScanRepository is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("ScanDispatcher is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ScanService{
		repo:       opts.Repo,
		dispatcher: opts.Dispatcher,
		cache:      opts.Cache,
		logger:     logger.With("component", "scan_service"),
		metrics:    opts.Metrics,
	}, nil
}

// Submit validates rawURL, stores a pending scan and schedules it. It returns
// as soon as the scan is stored; execution happens in the background.
func (s *ScanService) Submit(ctx context.Context, rawURL string) (*model.ScanJob, error) {
	normalized, err := model.NormalizeScanURL(rawURL)
	if err != nil {
		return nil, err
	}

	job, err := s.repo.Create(ctx, normalized)
	if err != nil {
		metrics.EmitScanLifecycle(s.metrics, metrics.ScanMetric{
			Transition: metrics.TransitionSubmitted,
			Result:     metrics.ResultError,
			Err:        err,
		})
		return nil, fmt.Errorf("create scan: %w", err)
	}

	s.dispatcher.Dispatch(job.ID)

	metrics.EmitScanLifecycle(s.metrics, metrics.ScanMetric{
		Transition: metrics.TransitionSubmitted,
		Result:     metrics.ResultSuccess,
	})
	s.logger.InfoContext(ctx, "scan submitted", "scan_id", job.ID, "url", job.URL)
	return job, nil
}

// Get returns the current state of scan id, or model.ErrScanNotFound.
func (s *ScanService) Get(ctx context.Context, id int64) (*model.ScanJob, error) {
	if id <= 0 {
		return nil, model.ErrScanNotFound
	}

	if job, ok := s.cache.Get(ctx, id); ok {
		return job, nil
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, job); err != nil {
		s.logger.WarnContext(ctx, "failed to cache terminal scan", "scan_id", id, "error", err)
	}
	return job, nil
}
