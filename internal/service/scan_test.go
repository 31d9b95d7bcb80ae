package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/data"
	"github.com/target/a11y-scanner/internal/domain/model"
	"github.com/target/a11y-scanner/internal/mocks"
	"github.com/target/a11y-scanner/internal/observability/statsd"
	"github.com/target/a11y-scanner/internal/testutil"
)

func TestNewScanService_RequiresDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := NewScanService(ScanServiceOptions{Dispatcher: mocks.NewMockScanDispatcher(ctrl)})
	require.Error(t, err)

	_, err = NewScanService(ScanServiceOptions{Repo: data.NewMemoryScanRepo(nil)})
	require.Error(t, err)
}

func TestScanService_Submit(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := data.NewMemoryScanRepo(data.NewFixedTimeProvider(testutil.TestTime()))
	dispatcher := mocks.NewMockScanDispatcher(ctrl)
	rec := &statsd.Recorder{}

	svc, err := NewScanService(ScanServiceOptions{Repo: repo, Dispatcher: dispatcher, Metrics: rec})
	require.NoError(t, err)

	dispatcher.EXPECT().Dispatch(int64(1))
	dispatcher.EXPECT().Dispatch(int64(2))

	first, err := svc.Submit(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "https://example.com/", first.URL)
	assert.Equal(t, model.ScanStatusPending, first.Status)
	assert.Equal(t, testutil.TestTime(), first.CreatedAt)
	assert.Nil(t, first.CompletedAt)

	second, err := svc.Submit(ctx, "  HTTPS://Example.org/page#frag ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, "https://example.org/page", second.URL)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.URL, got.URL)

	assert.Len(t, rec.Find("scan.lifecycle", map[string]string{"transition": "submitted", "result": "success"}), 2)
}

func TestScanService_Submit_InvalidURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanRepository(ctrl)
	dispatcher := mocks.NewMockScanDispatcher(ctrl)

	svc, err := NewScanService(ScanServiceOptions{Repo: repo, Dispatcher: dispatcher})
	require.NoError(t, err)

	for _, raw := range []string{"", "not a url", "ftp://example.com/", "/relative/path", "https://"} {
		t.Run(raw, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), raw)
			require.ErrorIs(t, err, model.ErrInvalidScanURL)
		})
	}
}

func TestScanService_Submit_StorageUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanRepository(ctrl)
	dispatcher := mocks.NewMockScanDispatcher(ctrl)

	repo.EXPECT().Create(gomock.Any(), "https://example.com/").
		Return(nil, model.ErrStorageUnavailable)

	svc, err := NewScanService(ScanServiceOptions{Repo: repo, Dispatcher: dispatcher})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), "https://example.com")
	require.ErrorIs(t, err, model.ErrStorageUnavailable)
}

func TestScanService_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanRepository(ctrl)

	svc, err := NewScanService(ScanServiceOptions{Repo: repo, Dispatcher: mocks.NewMockScanDispatcher(ctrl)})
	require.NoError(t, err)

	t.Run("not found", func(t *testing.T) {
		repo.EXPECT().GetByID(gomock.Any(), int64(999)).Return(nil, model.ErrScanNotFound)
		_, err := svc.Get(context.Background(), 999)
		require.ErrorIs(t, err, model.ErrScanNotFound)
	})

	t.Run("non-positive id never hits the store", func(t *testing.T) {
		_, err := svc.Get(context.Background(), 0)
		require.ErrorIs(t, err, model.ErrScanNotFound)
	})
}

func TestScanService_Get_UsesCacheForTerminalScans(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanRepository(ctrl)
	cacheRepo := mocks.NewMockCacheRepository(ctrl)
	cache := core.NewScanCache(core.ScanCacheOptions{Cache: cacheRepo, TTL: time.Minute})

	completed := testutil.NewScan().WithID(5).
		Processing(testutil.TestTime()).
		Completed(testutil.TestTime().Add(time.Second), "data/reports/scan_5.json", json.RawMessage(`{"url":"https://example.com/"}`)).
		Build()
	raw, err := json.Marshal(completed)
	require.NoError(t, err)

	gomock.InOrder(
		cacheRepo.EXPECT().Get(gomock.Any(), "a11y:scan:5").Return(nil, nil),
		repo.EXPECT().GetByID(gomock.Any(), int64(5)).Return(completed, nil),
		cacheRepo.EXPECT().Set(gomock.Any(), "a11y:scan:5", gomock.Any(), time.Minute).Return(nil),
		cacheRepo.EXPECT().Get(gomock.Any(), "a11y:scan:5").Return(raw, nil),
	)

	svc, err := NewScanService(ScanServiceOptions{
		Repo:       repo,
		Dispatcher: mocks.NewMockScanDispatcher(ctrl),
		Cache:      cache,
	})
	require.NoError(t, err)

	first, err := svc.Get(ctx, 5)
	require.NoError(t, err)
	second, err := svc.Get(ctx, 5)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, *first.ReportRef, *second.ReportRef)
	assert.JSONEq(t, string(first.ResultPayload), string(second.ResultPayload))
}

func TestScanService_Get_CacheErrorsFallBackToStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanRepository(ctrl)
	cacheRepo := mocks.NewMockCacheRepository(ctrl)
	pending := testutil.NewScan().WithID(9).Build()

	cacheRepo.EXPECT().Get(gomock.Any(), "a11y:scan:9").Return(nil, errors.New("redis down"))
	repo.EXPECT().GetByID(gomock.Any(), int64(9)).Return(pending, nil)

	svc, err := NewScanService(ScanServiceOptions{
		Repo:       repo,
		Dispatcher: mocks.NewMockScanDispatcher(ctrl),
		Cache:      core.NewScanCache(core.ScanCacheOptions{Cache: cacheRepo, TTL: time.Minute}),
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusPending, got.Status)
}

// The submit/poll scenario end to end with the in-memory store.
func TestScanLifecycle_SubmitAndPoll(t *testing.T) {
	ctx := context.Background()
	repo := data.NewMemoryScanRepo(nil)
	reports, err := data.NewFileReportStore(t.TempDir())
	require.NoError(t, err)

	runner, err := NewScanRunner(ScanRunnerOptions{
		Repo:    repo,
		Auditor: auditFunc(stubAudit),
		Reports: reports,
		Config:  defaultRunnerConfig(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = runner.Shutdown(context.Background()) })

	svc, err := NewScanService(ScanServiceOptions{Repo: repo, Dispatcher: runner})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		jobs []*model.ScanJob
	)
	for _, u := range []string{"https://example.com", "https://example.org/a"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			job, err := svc.Submit(ctx, u)
			assert.NoError(t, err)
			mu.Lock()
			jobs = append(jobs, job)
			mu.Unlock()
		}(u)
	}
	wg.Wait()
	require.Len(t, jobs, 2)
	require.NotEqual(t, jobs[0].ID, jobs[1].ID)

	for _, job := range jobs {
		assert.Equal(t, model.ScanStatusPending, job.Status)

		var final *model.ScanJob
		require.Eventually(t, func() bool {
			got, err := svc.Get(ctx, job.ID)
			if err != nil {
				return false
			}
			final = got
			return got.Status.IsTerminal()
		}, 5*time.Second, 10*time.Millisecond)

		assert.Equal(t, model.ScanStatusCompleted, final.Status)
		require.NotNil(t, final.ReportRef)
		assert.NotEmpty(t, *final.ReportRef)

		var report model.Report
		require.NoError(t, json.Unmarshal(final.ResultPayload, &report))
		assert.Equal(t, job.URL, report.URL)
	}
}
