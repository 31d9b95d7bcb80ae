package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/domain/model"
	"github.com/target/a11y-scanner/internal/testutil"
)

func TestScanRepo_Lifecycle(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedTimeProvider(testutil.TestTime())
		repo := NewScanRepo(db, ScanRepoOptions{TimeProvider: clock})

		job, err := repo.Create(ctx, "https://example.com/")
		require.NoError(t, err)
		assert.Positive(t, job.ID)
		assert.Equal(t, model.ScanStatusPending, job.Status)
		assert.True(t, job.CreatedAt.Equal(testutil.TestTime()))
		assert.Nil(t, job.CompletedAt)

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.URL, got.URL)

		clock.AddTime(time.Second)
		processing, err := repo.Transition(ctx, job.ID, model.ScanTransition{To: model.ScanStatusProcessing, At: clock.Now()})
		require.NoError(t, err)
		require.NotNil(t, processing.StartedAt)

		clock.AddTime(time.Second)
		payload := json.RawMessage(`{"url":"https://example.com/","violations":[]}`)
		done, err := repo.Transition(ctx, job.ID, model.ScanTransition{
			To:            model.ScanStatusCompleted,
			At:            clock.Now(),
			ReportRef:     "data/reports/scan_1.json",
			ResultPayload: payload,
		})
		require.NoError(t, err)
		assert.Equal(t, model.ScanStatusCompleted, done.Status)
		require.NotNil(t, done.ReportRef)
		assert.JSONEq(t, string(payload), string(done.ResultPayload))

		_, err = repo.Transition(ctx, job.ID, model.ScanTransition{To: model.ScanStatusFailed, At: clock.Now()})
		assert.ErrorIs(t, err, model.ErrInvalidTransition)

		_, err = repo.GetByID(ctx, job.ID+1000)
		assert.ErrorIs(t, err, model.ErrScanNotFound)
		_, err = repo.Transition(ctx, job.ID+1000, model.ScanTransition{To: model.ScanStatusProcessing, At: clock.Now()})
		assert.ErrorIs(t, err, model.ErrScanNotFound)
	})
}

func TestScanRepo_IDsAreMonotonic(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewScanRepo(db, ScanRepoOptions{})

		var last int64
		for range 5 {
			job, err := repo.Create(ctx, "https://example.com/")
			require.NoError(t, err)
			assert.Greater(t, job.ID, last)
			last = job.ID
		}
	})
}

func TestScanRepo_FailedTransitionLeavesResultsUnset(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewScanRepo(db, ScanRepoOptions{})

		job, err := repo.Create(ctx, "https://example.com/")
		require.NoError(t, err)
		_, err = repo.Transition(ctx, job.ID, model.ScanTransition{To: model.ScanStatusProcessing, At: time.Now()})
		require.NoError(t, err)

		failed, err := repo.Transition(ctx, job.ID, model.ScanTransition{To: model.ScanStatusFailed, At: time.Now(), Error: "audit failed: timeout"})
		require.NoError(t, err)
		assert.Equal(t, model.ScanStatusFailed, failed.Status)
		assert.NotNil(t, failed.CompletedAt)
		assert.Nil(t, failed.ReportRef)
		assert.Nil(t, failed.ResultPayload)
		require.NotNil(t, failed.LastError)
		assert.Equal(t, "audit failed: timeout", *failed.LastError)
	})
}

func TestScanRepo_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewScanRepo(db, ScanRepoOptions{})
		job, err := repo.Create(ctx, "https://example.com/")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Transition(ctx, job.ID, model.ScanTransition{To: model.ScanStatusProcessing, At: time.Now()}); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}

func TestScanRepo_Reconcile(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedTimeProvider(testutil.TestTime())
		repo := NewScanRepo(db, ScanRepoOptions{TimeProvider: clock})

		stale, err := repo.Create(ctx, "https://stale.example/")
		require.NoError(t, err)
		_, err = repo.Transition(ctx, stale.ID, model.ScanTransition{To: model.ScanStatusProcessing, At: clock.Now()})
		require.NoError(t, err)
		orphan, err := repo.Create(ctx, "https://orphan.example/")
		require.NoError(t, err)

		clock.AddTime(time.Hour)
		fresh, err := repo.Create(ctx, "https://fresh.example/")
		require.NoError(t, err)

		ids, err := repo.ListOrphanedPending(ctx, 10*time.Minute, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{orphan.ID}, ids)
		assert.NotContains(t, ids, fresh.ID)

		n, err := repo.FailStaleProcessing(ctx, core.FailStaleParams{MaxAge: 15 * time.Minute, BatchSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := repo.GetByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ScanStatusFailed, got.Status)
		require.NotNil(t, got.LastError)
		assert.Equal(t, DefaultStaleProcessingReason, *got.LastError)

		n, err = repo.FailStaleProcessing(ctx, core.FailStaleParams{MaxAge: 15 * time.Minute, BatchSize: 10})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestScanRepo_TriggerRejectsTerminalRewrite(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewScanRepo(db, ScanRepoOptions{})
		job, err := repo.Create(ctx, "https://example.com/")
		require.NoError(t, err)
		_, err = repo.Transition(ctx, job.ID, model.ScanTransition{To: model.ScanStatusProcessing, At: time.Now()})
		require.NoError(t, err)
		_, err = repo.Transition(ctx, job.ID, model.ScanTransition{To: model.ScanStatusFailed, At: time.Now()})
		require.NoError(t, err)

		_, err = db.ExecContext(ctx, `UPDATE scans SET last_error = 'rewritten' WHERE id = $1`, job.ID)
		assert.Error(t, err)
	})
}
