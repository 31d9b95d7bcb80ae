package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/a11y-scanner/internal/domain/model"
	"github.com/target/a11y-scanner/internal/testutil"
)

type failingCache struct{ err error }

func (f failingCache) Set(context.Context, string, []byte, time.Duration) error { return f.err }
func (f failingCache) Get(context.Context, string) ([]byte, error)              { return nil, f.err }
func (f failingCache) Delete(context.Context, string) (bool, error)             { return false, f.err }
func (f failingCache) SetIfNotExists(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, f.err
}
func (f failingCache) Health(context.Context) error { return f.err }

func TestRedisReportStore_CacheFailureIsStoreFailure(t *testing.T) {
	store := NewRedisReportStore(failingCache{err: errors.New("connection refused")}, 0)

	_, err := store.Save(context.Background(), 1, testutil.NewStubReport("https://example.com/"))
	assert.ErrorIs(t, err, model.ErrReportStore)

	_, err = store.Save(context.Background(), 1, nil)
	assert.ErrorIs(t, err, model.ErrReportStore)
}

func TestRedisReportStore_RejectsForeignRefs(t *testing.T) {
	store := NewRedisReportStore(failingCache{}, 0)
	for _, ref := range []string{"data/reports/scan_1.json", "redis://other:key", ""} {
		_, err := store.Load(context.Background(), ref)
		assert.ErrorIs(t, err, ErrInvalidReportRef, ref)
	}
}

func TestRedisReportStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	ctx := context.Background()

	store := NewRedisReportStore(NewRedisCacheRepo(client), time.Hour)
	report := testutil.NewStubReport("https://example.com/")

	ref, err := store.Save(ctx, 12, report)
	require.NoError(t, err)
	assert.Equal(t, "redis://a11y:report:12", ref)

	ttl := client.TTL(ctx, "a11y:report:12").Val()
	assert.True(t, ttl > 0 && ttl <= time.Hour)

	loaded, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, report.URL, loaded.URL)
	assert.Len(t, loaded.Violations, 1)

	_, err = store.Load(ctx, "redis://a11y:report:13")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestRedisCacheRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "test:key", []byte("v"), time.Minute))
	got, err := repo.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	missing, err := repo.Get(ctx, "test:missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	set, err := repo.SetIfNotExists(ctx, "test:key", []byte("w"), time.Minute)
	require.NoError(t, err)
	assert.False(t, set)

	set, err = repo.SetIfNotExists(ctx, "test:nx", []byte("w"), 0)
	require.NoError(t, err)
	assert.True(t, set)

	deleted, err := repo.Delete(ctx, "test:key")
	require.NoError(t, err)
	assert.True(t, deleted)

	assert.Error(t, repo.Set(ctx, "", nil, 0))
	assert.NoError(t, repo.Health(ctx))
}
