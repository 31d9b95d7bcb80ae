package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/domain/model"
)

const (
	redisReportKeyPrefix = "a11y:report:"
	redisReportRefScheme = "redis://"
)

// RedisReportStore keeps reports in a CacheRepository under a11y:report:<id>.
// References look like redis://a11y:report:<id>.
type RedisReportStore struct {
	cache core.CacheRepository
	ttl   time.Duration
}

// NewRedisReportStore creates a RedisReportStore. A zero ttl keeps reports forever.
func NewRedisReportStore(cache core.CacheRepository, ttl time.Duration) *RedisReportStore {
	return &RedisReportStore{cache: cache, ttl: ttl}
}

func redisReportKey(scanID int64) string {
	return redisReportKeyPrefix + strconv.FormatInt(scanID, 10)
}

// Save stores report and returns its reference.
func (s *RedisReportStore) Save(ctx context.Context, scanID int64, report *model.Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("%w: report is nil", model.ErrReportStore)
	}
	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("%w: marshal report: %w", model.ErrReportStore, err)
	}
	key := redisReportKey(scanID)
	if err := s.cache.Set(ctx, key, body, s.ttl); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrReportStore, err)
	}
	return redisReportRefScheme + key, nil
}

// Load resolves a redis:// reference.
func (s *RedisReportStore) Load(ctx context.Context, ref string) (*model.Report, error) {
	key, ok := strings.CutPrefix(ref, redisReportRefScheme)
	if !ok || !strings.HasPrefix(key, redisReportKeyPrefix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReportRef, ref)
	}

	body, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, ref)
	}

	var report model.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", ref, err)
	}
	return &report, nil
}
