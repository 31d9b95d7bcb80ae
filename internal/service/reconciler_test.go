package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/a11y-scanner/config"
	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/data"
	"github.com/target/a11y-scanner/internal/domain/model"
	"github.com/target/a11y-scanner/internal/mocks"
	"github.com/target/a11y-scanner/internal/observability/statsd"
	"github.com/target/a11y-scanner/internal/testutil"
)

func reconcilerConfig() config.ReconcilerConfig {
	return config.ReconcilerConfig{
		Interval:         time.Minute,
		ProcessingMaxAge: 15 * time.Minute,
		PendingGrace:     2 * time.Minute,
		BatchSize:        2,
	}
}

func TestNewReconcilerService(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("creates service with valid options", func(t *testing.T) {
		svc, err := NewReconcilerService(ReconcilerServiceOptions{
			Repo:       mocks.NewMockScanReconcileRepository(ctrl),
			Dispatcher: mocks.NewMockScanDispatcher(ctrl),
			Config:     reconcilerConfig(),
			Logger:     slog.Default(),
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when repo is nil", func(t *testing.T) {
		_, err := NewReconcilerService(ReconcilerServiceOptions{
			Dispatcher: mocks.NewMockScanDispatcher(ctrl),
			Config:     reconcilerConfig(),
		})
		require.Error(t, err)
	})

	t.Run("returns error when dispatcher is nil", func(t *testing.T) {
		_, err := NewReconcilerService(ReconcilerServiceOptions{
			Repo:   mocks.NewMockScanReconcileRepository(ctrl),
			Config: reconcilerConfig(),
		})
		require.Error(t, err)
	})
}

func TestReconcilerService_RunOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanReconcileRepository(ctrl)
	dispatcher := mocks.NewMockScanDispatcher(ctrl)
	rec := &statsd.Recorder{}
	cfg := reconcilerConfig()

	want := core.FailStaleParams{MaxAge: cfg.ProcessingMaxAge, BatchSize: cfg.BatchSize, Reason: StaleProcessingReason}
	gomock.InOrder(
		repo.EXPECT().FailStaleProcessing(gomock.Any(), want).Return(int64(2), nil),
		repo.EXPECT().FailStaleProcessing(gomock.Any(), want).Return(int64(1), nil),
	)
	repo.EXPECT().ListOrphanedPending(gomock.Any(), cfg.PendingGrace, cfg.BatchSize).Return([]int64{4, 8}, nil)
	dispatcher.EXPECT().Dispatch(int64(4))
	dispatcher.EXPECT().Dispatch(int64(8))

	svc, err := NewReconcilerService(ReconcilerServiceOptions{
		Repo:       repo,
		Dispatcher: dispatcher,
		Config:     cfg,
		Metrics:    rec,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunOnce(context.Background()))

	stale := rec.Find("reconciler.scans", map[string]string{"step": "fail_stale_processing"})
	require.Len(t, stale, 1)
	assert.InDelta(t, 3, stale[0].Value, 0)
	assert.Len(t, rec.Find("reconciler.scans", map[string]string{"step": "redispatch_pending"}), 1)
	assert.Len(t, rec.Find("reconciler.last_success_epoch", nil), 1)
}

func TestReconcilerService_RunOnce_StepErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanReconcileRepository(ctrl)
	dispatcher := mocks.NewMockScanDispatcher(ctrl)
	rec := &statsd.Recorder{}

	repo.EXPECT().FailStaleProcessing(gomock.Any(), gomock.Any()).Return(int64(0), model.ErrStorageUnavailable)
	repo.EXPECT().ListOrphanedPending(gomock.Any(), gomock.Any(), gomock.Any()).Return([]int64{11}, nil)
	dispatcher.EXPECT().Dispatch(int64(11))

	svc, err := NewReconcilerService(ReconcilerServiceOptions{
		Repo:       repo,
		Dispatcher: dispatcher,
		Config:     reconcilerConfig(),
		Metrics:    rec,
	})
	require.NoError(t, err)

	err = svc.RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, model.ErrStorageUnavailable)
	assert.Contains(t, err.Error(), "fail_stale_processing")

	assert.Len(t, rec.Find("reconciler.runs", map[string]string{"step": "fail_stale_processing", "result": "error"}), 1)
	assert.Empty(t, rec.Find("reconciler.last_success_epoch", nil))
}

func TestReconcilerService_RunOnce_ContextCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanReconcileRepository(ctrl)

	repo.EXPECT().FailStaleProcessing(gomock.Any(), gomock.Any()).Return(int64(0), context.Canceled)
	repo.EXPECT().ListOrphanedPending(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, context.Canceled)

	svc, err := NewReconcilerService(ReconcilerServiceOptions{
		Repo:       repo,
		Dispatcher: mocks.NewMockScanDispatcher(ctrl),
		Config:     reconcilerConfig(),
	})
	require.NoError(t, err)

	err = svc.RunOnce(context.Background())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestReconcilerService_Run_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanReconcileRepository(ctrl)
	repo.EXPECT().FailStaleProcessing(gomock.Any(), gomock.Any()).Return(int64(0), nil).AnyTimes()
	repo.EXPECT().ListOrphanedPending(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	cfg := reconcilerConfig()
	cfg.Interval = 10 * time.Millisecond

	svc, err := NewReconcilerService(ReconcilerServiceOptions{
		Repo:       repo,
		Dispatcher: mocks.NewMockScanDispatcher(ctrl),
		Config:     cfg,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case err := <-done:
		// DeadlineExceeded is surfaced; only Canceled is treated as graceful.
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context expiry")
	}
}

// Stale processing scans are failed and orphaned pending scans reach a
// terminal state through the runner.
func TestReconcilerService_WithMemoryStoreAndRunner(t *testing.T) {
	ctx := context.Background()
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	repo := data.NewMemoryScanRepo(clock)
	reports, err := data.NewFileReportStore(t.TempDir())
	require.NoError(t, err)

	stuck, err := repo.Create(ctx, "https://stuck.example.com/")
	require.NoError(t, err)
	_, err = repo.Transition(ctx, stuck.ID, model.ScanTransition{To: model.ScanStatusProcessing, At: clock.Now()})
	require.NoError(t, err)
	orphan, err := repo.Create(ctx, "https://orphan.example.com/")
	require.NoError(t, err)

	clock.AddTime(time.Hour)

	runner, err := NewScanRunner(ScanRunnerOptions{
		Repo:    repo,
		Auditor: auditFunc(stubAudit),
		Reports: reports,
		Config:  defaultRunnerConfig(),
		Now:     clock.Now,
	})
	require.NoError(t, err)

	svc, err := NewReconcilerService(ReconcilerServiceOptions{
		Repo:       repo,
		Dispatcher: runner,
		Config:     reconcilerConfig(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunOnce(ctx))
	require.NoError(t, runner.Shutdown(ctx))

	gotStuck, err := repo.GetByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusFailed, gotStuck.Status)
	require.NotNil(t, gotStuck.LastError)
	assert.Equal(t, StaleProcessingReason, *gotStuck.LastError)
	assert.Nil(t, gotStuck.ReportRef)

	gotOrphan, err := repo.GetByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusCompleted, gotOrphan.Status)
}
