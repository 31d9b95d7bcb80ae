package data

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/domain/model"
)

// MemoryScanRepo is an in-process scan store for development (SCAN_STORE=memory)
// and tests. Ids start at 1 and are never reused for the life of the process.
type MemoryScanRepo struct {
	mu           sync.RWMutex
	nextID       int64
	scans        map[int64]*model.ScanJob
	timeProvider TimeProvider
}

// NewMemoryScanRepo creates an empty MemoryScanRepo.
func NewMemoryScanRepo(tp TimeProvider) *MemoryScanRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &MemoryScanRepo{scans: make(map[int64]*model.ScanJob), timeProvider: tp}
}

// Create inserts a new pending scan.
func (r *MemoryScanRepo) Create(_ context.Context, url string) (*model.ScanJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	job := &model.ScanJob{
		ID:        r.nextID,
		URL:       url,
		Status:    model.ScanStatusPending,
		CreatedAt: r.timeProvider.Now().UTC(),
	}
	r.scans[job.ID] = job
	return job.Clone(), nil
}

// GetByID returns a copy of the stored scan.
func (r *MemoryScanRepo) GetByID(_ context.Context, id int64) (*model.ScanJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.scans[id]
	if !ok {
		return nil, model.ErrScanNotFound
	}
	return job.Clone(), nil
}

// Transition applies t under the write lock.
func (r *MemoryScanRepo) Transition(_ context.Context, id int64, t model.ScanTransition) (*model.ScanJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.scans[id]
	if !ok {
		return nil, model.ErrScanNotFound
	}
	next, err := t.Apply(job)
	if err != nil {
		return nil, err
	}
	r.scans[id] = next
	return next.Clone(), nil
}

// FailStaleProcessing fails scans processing for longer than params.MaxAge.
func (r *MemoryScanRepo) FailStaleProcessing(_ context.Context, params core.FailStaleParams) (int64, error) {
	if params.MaxAge <= 0 {
		return 0, errors.New("max age must be greater than zero")
	}
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	reason := params.Reason
	if reason == "" {
		reason = DefaultStaleProcessingReason
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeProvider.Now().UTC()
	cutoff := now.Add(-params.MaxAge)

	var stale []*model.ScanJob
	for _, job := range r.scans {
		if job.Status == model.ScanStatusProcessing && job.StartedAt != nil && job.StartedAt.Before(cutoff) {
			stale = append(stale, job)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].StartedAt.Before(*stale[j].StartedAt) })
	if len(stale) > params.BatchSize {
		stale = stale[:params.BatchSize]
	}

	for _, job := range stale {
		next, err := model.ScanTransition{To: model.ScanStatusFailed, At: now, Error: reason}.Apply(job)
		if err != nil {
			return 0, err
		}
		r.scans[job.ID] = next
	}
	return int64(len(stale)), nil
}

// ListOrphanedPending returns ids of scans pending for longer than maxAge.
func (r *MemoryScanRepo) ListOrphanedPending(_ context.Context, maxAge time.Duration, limit int) ([]int64, error) {
	if maxAge <= 0 {
		return nil, errors.New("max age must be greater than zero")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be greater than zero")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := r.timeProvider.Now().UTC().Add(-maxAge)
	var ids []int64
	for id, job := range r.scans {
		if job.Status == model.ScanStatusPending && job.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
