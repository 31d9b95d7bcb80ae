package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/target/a11y-scanner/config"
	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/domain/model"
	"github.com/target/a11y-scanner/internal/observability/metrics"
	"github.com/target/a11y-scanner/internal/observability/statsd"
)

// maxFailureReasonLen caps the error text persisted on a failed scan.
const maxFailureReasonLen = 1024

// ScanRunnerOptions groups dependencies for ScanRunner.
type ScanRunnerOptions struct {
	Repo    core.ScanRepository // Required
	Auditor core.Auditor        // Required
	Reports core.ReportStore    // Required
	Config  config.RunnerConfig

	Cache   *core.ScanCache  // Optional: receives terminal scans
	Logger  *slog.Logger     // Optional
	Metrics statsd.Sink      // Optional
	Now     func() time.Time // Optional: defaults to time.Now
}

// ScanRunner drives scans from pending to a terminal status off the request path.
//
// At most one execution per scan id is in flight inside a process: concurrent
// Execute calls for one id share a single run. Across processes the store's
// guarded transition decides which runner claims the scan.
type ScanRunner struct {
	repo    core.ScanRepository
	auditor core.Auditor
	reports core.ReportStore
	cache   *core.ScanCache
	cfg     config.RunnerConfig
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time

	sem   *semaphore.Weighted
	group singleflight.Group

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ core.ScanDispatcher = (*ScanRunner)(nil)

// NewScanRunner constructs a ScanRunner.
func NewScanRunner(opts ScanRunnerOptions) (*ScanRunner, error) {
	switch {
	case opts.Repo == nil:
		return nil, errors.New("ScanRepository is required")
	case opts.Auditor == nil:
		return nil, errors.New("Auditor is required")
	case opts.Reports == nil:
		return nil, errors.New("ReportStore is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ScanRunner{
		repo:    opts.Repo,
		auditor: opts.Auditor,
		reports: opts.Reports,
		cache:   opts.Cache,
		cfg:     cfg,
		logger:  logger.With("component", "scan_runner"),
		metrics: opts.Metrics,
		now:     now,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		baseCtx: ctx,
		cancel:  cancel,
	}, nil
}

// Dispatch schedules an execution of scan id and returns immediately.
// Errors are absorbed into the scan's persisted status and logged.
func (r *ScanRunner) Dispatch(id int64) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("runner shut down, dropping dispatch", "scan_id", id)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("scan execution panicked", "scan_id", id, "panic", rec)
			}
		}()

		if err := r.Execute(r.baseCtx, id); err != nil {
			r.logger.Warn("scan execution ended with error", "scan_id", id, "error", err)
		}
	}()
}

// Execute runs the lifecycle of scan id to completion. A missing scan or one
// that is no longer pending is a no-op. The returned error describes what went
// wrong for logging; the scan record is the authoritative outcome.
func (r *ScanRunner) Execute(ctx context.Context, id int64) error {
	_, err, shared := r.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquire runner slot: %w", err)
		}
		defer r.sem.Release(1)
		return nil, r.execute(ctx, id)
	})
	if shared {
		r.logger.Debug("joined in-flight execution", "scan_id", id)
	}
	return err
}

func (r *ScanRunner) execute(ctx context.Context, id int64) error {
	job, err := r.repo.GetByID(ctx, id)
	if errors.Is(err, model.ErrScanNotFound) {
		r.logger.DebugContext(ctx, "scan vanished before execution", "scan_id", id)
		r.emit(metrics.TransitionProcessing, metrics.ResultNoop, 0, nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load scan %d: %w", id, err)
	}
	if job.Status != model.ScanStatusPending {
		r.emit(metrics.TransitionProcessing, metrics.ResultNoop, 0, nil)
		return nil
	}

	started := r.now()
	job, err = r.repo.Transition(ctx, id, model.ScanTransition{To: model.ScanStatusProcessing, At: started})
	if errors.Is(err, model.ErrInvalidTransition) || errors.Is(err, model.ErrScanNotFound) {
		r.logger.DebugContext(ctx, "scan claimed elsewhere", "scan_id", id)
		r.emit(metrics.TransitionProcessing, metrics.ResultNoop, 0, nil)
		return nil
	}
	if err != nil {
		r.emit(metrics.TransitionProcessing, metrics.ResultError, 0, err)
		return fmt.Errorf("claim scan %d: %w", id, err)
	}
	r.emit(metrics.TransitionProcessing, metrics.ResultSuccess, 0, nil)
	r.logger.InfoContext(ctx, "scan processing", "scan_id", id, "url", job.URL)

	report, err := r.audit(ctx, job.URL)
	if err != nil {
		return r.fail(ctx, id, started, err)
	}

	ref, err := r.reports.Save(ctx, id, report)
	if err != nil {
		return r.fail(ctx, id, started, wrapReportErr(err))
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return r.fail(ctx, id, started, fmt.Errorf("%w: encode report: %w", model.ErrReportStore, err))
	}

	return r.complete(ctx, id, started, ref, payload)
}

// audit calls the auditor under the configured timeout. Panics and empty
// reports count as audit failures.
func (r *ScanRunner) audit(ctx context.Context, url string) (report *model.Report, err error) {
	if r.cfg.AuditTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.AuditTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			report, err = nil, fmt.Errorf("%w: auditor panic: %v", model.ErrAuditFailed, rec)
		}
	}()

	report, err = r.auditor.Audit(ctx, url)
	switch {
	case err != nil && !errors.Is(err, model.ErrAuditFailed):
		return nil, fmt.Errorf("%w: %w", model.ErrAuditFailed, err)
	case err != nil:
		return nil, err
	case report == nil:
		return nil, fmt.Errorf("%w: auditor returned no report", model.ErrAuditFailed)
	}
	return report, nil
}

func (r *ScanRunner) complete(ctx context.Context, id int64, started time.Time, ref string, payload []byte) error {
	wctx, cancel := r.finalizeContext(ctx)
	defer cancel()

	job, err := r.repo.Transition(wctx, id, model.ScanTransition{
		To:            model.ScanStatusCompleted,
		At:            r.now(),
		ReportRef:     ref,
		ResultPayload: payload,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to record scan completion; scan left processing",
			"scan_id", id, "report_reference", ref, "error", err)
		r.emit(metrics.TransitionCompleted, metrics.ResultError, r.now().Sub(started), err)
		return fmt.Errorf("complete scan %d: %w", id, err)
	}

	r.remember(wctx, job)
	r.emit(metrics.TransitionCompleted, metrics.ResultSuccess, r.now().Sub(started), nil)
	r.logger.InfoContext(ctx, "scan completed", "scan_id", id, "report_reference", ref)
	return nil
}

func (r *ScanRunner) fail(ctx context.Context, id int64, started time.Time, cause error) error {
	wctx, cancel := r.finalizeContext(ctx)
	defer cancel()

	job, err := r.repo.Transition(wctx, id, model.ScanTransition{
		To:    model.ScanStatusFailed,
		At:    r.now(),
		Error: failureReason(cause),
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to record scan failure; scan left processing",
			"scan_id", id, "cause", cause, "error", err)
		r.emit(metrics.TransitionFailed, metrics.ResultError, r.now().Sub(started), err)
		return errors.Join(cause, fmt.Errorf("record failure for scan %d: %w", id, err))
	}

	r.remember(wctx, job)
	r.emit(metrics.TransitionFailed, metrics.ResultError, r.now().Sub(started), cause)
	r.logger.WarnContext(ctx, "scan failed", "scan_id", id, "error", cause)
	return cause
}

// finalizeContext detaches terminal writes from caller cancellation so that
// shutdown does not strand a scan in processing.
func (r *ScanRunner) finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.cfg.FinalizeTimeout)
}

func (r *ScanRunner) remember(ctx context.Context, job *model.ScanJob) {
	if err := r.cache.Put(ctx, job); err != nil {
		r.logger.WarnContext(ctx, "failed to cache terminal scan", "scan_id", job.ID, "error", err)
	}
}

func (r *ScanRunner) emit(transition, result string, d time.Duration, err error) {
	metrics.EmitScanLifecycle(r.metrics, metrics.ScanMetric{
		Transition: transition,
		Result:     result,
		Duration:   d,
		Err:        err,
	})
}

// Shutdown stops accepting dispatches and waits for in-flight executions.
// When ctx expires first, running audits are cancelled and their scans are
// recorded as failed before Shutdown returns ctx's error.
func (r *ScanRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
	}

	r.cancel()
	timer := time.NewTimer(r.cfg.FinalizeTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		r.logger.Error("scan executions still running after shutdown deadline")
	}
	return ctx.Err()
}

func wrapReportErr(err error) error {
	if errors.Is(err, model.ErrReportStore) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrReportStore, err)
}

func failureReason(err error) string {
	msg := err.Error()
	if len(msg) > maxFailureReasonLen {
		msg = strings.ToValidUTF8(msg[:maxFailureReasonLen], "")
	}
	return msg
}
