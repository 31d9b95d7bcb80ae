package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/a11y-scanner/internal/domain/model"
)

type memoryCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[key], nil
}

func (m *memoryCache) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	delete(m.data, key)
	return ok, nil
}

func (m *memoryCache) SetIfNotExists(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memoryCache) Health(context.Context) error { return nil }

func TestScanCache_OnlyTerminalScansAreCached(t *testing.T) {
	ctx := context.Background()
	mc := newMemoryCache()
	c := NewScanCache(ScanCacheOptions{Cache: mc, TTL: time.Hour})

	pending := &model.ScanJob{ID: 1, URL: "https://example.com/", Status: model.ScanStatusPending}
	require.NoError(t, c.Put(ctx, pending))
	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)

	done := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ref := "data/reports/scan_2.json"
	completed := &model.ScanJob{
		ID:            2,
		URL:           "https://example.com/",
		Status:        model.ScanStatusCompleted,
		CompletedAt:   &done,
		ReportRef:     &ref,
		ResultPayload: []byte(`{"url":"https://example.com/"}`),
	}
	require.NoError(t, c.Put(ctx, completed))

	got, ok := c.Get(ctx, 2)
	require.True(t, ok)
	assert.Equal(t, model.ScanStatusCompleted, got.Status)
	assert.Equal(t, ref, *got.ReportRef)
	assert.JSONEq(t, string(completed.ResultPayload), string(got.ResultPayload))
}

func TestScanCache_ErrorsAreMisses(t *testing.T) {
	mc := newMemoryCache()
	mc.getErr = errors.New("redis down")
	c := NewScanCache(ScanCacheOptions{Cache: mc})

	_, ok := c.Get(context.Background(), 1)
	assert.False(t, ok)
}

func TestScanCache_CorruptEntryIsMiss(t *testing.T) {
	mc := newMemoryCache()
	mc.data[scanCacheKey(3)] = []byte("{not json")
	c := NewScanCache(ScanCacheOptions{Cache: mc})

	_, ok := c.Get(context.Background(), 3)
	assert.False(t, ok)
}

func TestScanCache_NilIsSafe(t *testing.T) {
	var c *ScanCache
	_, ok := c.Get(context.Background(), 1)
	assert.False(t, ok)
	assert.NoError(t, c.Put(context.Background(), &model.ScanJob{Status: model.ScanStatusFailed}))
}
