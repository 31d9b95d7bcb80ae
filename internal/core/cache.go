// Package core defines the ports of the scan service and small pieces of
// logic that sit directly on them.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/target/a11y-scanner/internal/domain/model"
)

// CacheRepository defines the interface for caching operations.
type CacheRepository interface {
	// Set stores a value with the given TTL. A TTL of 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns nil, nil when the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Health(ctx context.Context) error
}

const scanCacheKeyPrefix = "a11y:scan:"

// ScanCache keeps terminal scans in a CacheRepository. Terminal scans never
// change, so a cached copy can't go stale; non-terminal scans are never cached.
type ScanCache struct {
	cache  CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

// ScanCacheOptions bundles dependencies for NewScanCache.
type ScanCacheOptions struct {
	Cache  CacheRepository
	TTL    time.Duration
	Logger *slog.Logger
}

// NewScanCache creates a ScanCache. A nil Cache yields a cache that never hits.
func NewScanCache(opts ScanCacheOptions) *ScanCache {
	logger := opts.Logger
	if logger != nil {
		logger = logger.With("component", "scan_cache")
	}
	return &ScanCache{cache: opts.Cache, ttl: opts.TTL, logger: logger}
}

func scanCacheKey(id int64) string {
	return scanCacheKeyPrefix + strconv.FormatInt(id, 10)
}

// Get returns the cached scan, if any. Cache failures are logged and
// reported as misses.
func (c *ScanCache) Get(ctx context.Context, id int64) (*model.ScanJob, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, scanCacheKey(id))
	if err != nil {
		c.warn(ctx, "scan cache get failed", id, err)
		return nil, false
	}
	if len(raw) == 0 {
		return nil, false
	}
	var job model.ScanJob
	if err := json.Unmarshal(raw, &job); err != nil {
		c.warn(ctx, "scan cache entry corrupt", id, err)
		return nil, false
	}
	return &job, true
}

// Put caches job when it is terminal.
func (c *ScanCache) Put(ctx context.Context, job *model.ScanJob) error {
	if c == nil || c.cache == nil || job == nil || !job.Status.IsTerminal() {
		return nil
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal scan %d: %w", job.ID, err)
	}
	if err := c.cache.Set(ctx, scanCacheKey(job.ID), raw, c.ttl); err != nil {
		return fmt.Errorf("cache scan %d: %w", job.ID, err)
	}
	return nil
}

func (c *ScanCache) warn(ctx context.Context, msg string, id int64, err error) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg, "scan_id", id, "error", err)
	}
}
