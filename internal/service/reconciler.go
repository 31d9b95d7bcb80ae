package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/a11y-scanner/config"
	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/observability/metrics"
	"github.com/target/a11y-scanner/internal/observability/statsd"
)

// StaleProcessingReason is recorded on scans failed by the processing deadline.
const StaleProcessingReason = "scan exceeded processing deadline"

const (
	stepFailStale  = "fail_stale_processing"
	stepRedispatch = "redispatch_pending"
)

// ReconcilerServiceOptions groups dependencies for ReconcilerService.
type ReconcilerServiceOptions struct {
	Repo       core.ScanReconcileRepository // Required
	Dispatcher core.ScanDispatcher          // Required: receives orphaned pending scans
	Config     config.ReconcilerConfig      // Required
	Logger     *slog.Logger                 // Optional
	Metrics    statsd.Sink                  // Optional
}

// ReconcilerService recovers scans whose execution was lost.
//
// Each sweep:
// - fails scans stuck in processing past the deadline (never re-queued, status only moves forward).
// - re-dispatches scans left pending past the grace period.
type ReconcilerService struct {
	repo       core.ScanReconcileRepository
	dispatcher core.ScanDispatcher
	config     config.ReconcilerConfig
	logger     *slog.Logger
	metrics    statsd.Sink
}

// NewReconcilerService constructs a new ReconcilerService.
func NewReconcilerService(opts ReconcilerServiceOptions) (*ReconcilerService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ScanReconcileRepository is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("ScanDispatcher is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reconciler_service")
		logger.Debug("ReconcilerService initialized",
			"interval", opts.Config.Interval,
			"processing_max_age", opts.Config.ProcessingMaxAge,
			"pending_grace", opts.Config.PendingGrace,
			"batch_size", opts.Config.BatchSize,
		)
	}

	return &ReconcilerService{
		repo:       opts.Repo,
		dispatcher: opts.Dispatcher,
		config:     opts.Config,
		logger:     logger,
		metrics:    opts.Metrics,
	}, nil
}

// Run starts the reconcile loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReconcilerService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reconciler service", "interval", s.config.Interval)
	}

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logReconcileError(err, "initial reconcile")
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reconciler service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logReconcileError(err, "reconcile")
			}
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval so that
// several instances started together don't sweep in lockstep.
func (s *ReconcilerService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// RunOnce performs a single sweep. Both steps run even if the first fails.
func (s *ReconcilerService) RunOnce(ctx context.Context) error {
	var (
		errs               []error
		allContextCanceled = true
	)

	steps := []struct {
		name string
		fn   func(context.Context) (int64, error)
	}{
		{stepFailStale, s.failStaleProcessing},
		{stepRedispatch, s.redispatchPending},
	}

	for _, step := range steps {
		start := time.Now()
		count, err := step.fn(ctx)
		metrics.EmitReconcile(s.metrics, metrics.ReconcileMetric{
			Step:     step.name,
			Count:    count,
			Duration: time.Since(start),
			Err:      suppressContextCancellation(err),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			allContextCanceled = allContextCanceled && isContextCancellation(err)
		}
	}

	if len(errs) == 0 {
		if s.metrics != nil {
			s.metrics.Gauge("reconciler.last_success_epoch", float64(time.Now().Unix()), nil)
		}
		return nil
	}

	joined := errors.Join(errs...)
	if allContextCanceled {
		return context.Canceled
	}
	return fmt.Errorf("reconcile failed: %w", joined)
}

// failStaleProcessing loops in batches until no stale scan remains.
func (s *ReconcilerService) failStaleProcessing(ctx context.Context) (int64, error) {
	var total int64
	for {
		count, err := s.repo.FailStaleProcessing(ctx, core.FailStaleParams{
			MaxAge:    s.config.ProcessingMaxAge,
			BatchSize: s.config.BatchSize,
			Reason:    StaleProcessingReason,
		})
		if err != nil {
			return total, err
		}
		total += count
		if count < int64(s.config.BatchSize) {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 && s.logger != nil {
		s.logger.WarnContext(ctx, "failed scans stuck in processing",
			"count", total,
			"max_age", s.config.ProcessingMaxAge,
		)
	}
	return total, nil
}

// redispatchPending hands one batch of orphaned pending scans back to the
// runner. Remaining orphans are picked up on the next tick.
func (s *ReconcilerService) redispatchPending(ctx context.Context) (int64, error) {
	ids, err := s.repo.ListOrphanedPending(ctx, s.config.PendingGrace, s.config.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.dispatcher.Dispatch(id)
	}

	if len(ids) > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "re-dispatched orphaned pending scans",
			"count", len(ids),
			"grace", s.config.PendingGrace,
		)
	}
	return int64(len(ids)), nil
}

func (s *ReconcilerService) logReconcileError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
