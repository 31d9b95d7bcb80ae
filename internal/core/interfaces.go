package core

import (
	"context"
	"time"

	domainauth "github.com/target/a11y-scanner/internal/domain/auth"
	"github.com/target/a11y-scanner/internal/domain/model"
)

// This file contains the ports between the service layer and its adapters.
// Services depend on these interfaces, not on concrete implementations.

// ScanRepository is the durable store of scan jobs.
//
// GetByID is read-after-write consistent for a single id. Transition applies
// one status change atomically and returns model.ErrInvalidTransition when the
// stored status is not the transition's predecessor.
type ScanRepository interface {
	Create(ctx context.Context, url string) (*model.ScanJob, error)
	GetByID(ctx context.Context, id int64) (*model.ScanJob, error)
	Transition(ctx context.Context, id int64, t model.ScanTransition) (*model.ScanJob, error)
}

// FailStaleParams groups parameters for ScanReconcileRepository.FailStaleProcessing.
type FailStaleParams struct {
	MaxAge    time.Duration
	BatchSize int
	Reason    string
}

// ScanReconcileRepository exposes the sweeps used to recover scans whose
// runner died mid-flight.
type ScanReconcileRepository interface {
	// FailStaleProcessing fails scans that have been processing longer than MaxAge.
	FailStaleProcessing(ctx context.Context, params FailStaleParams) (int64, error)
	// ListOrphanedPending returns ids of scans still pending after maxAge.
	ListOrphanedPending(ctx context.Context, maxAge time.Duration, limit int) ([]int64, error)
}

// Auditor inspects a URL and produces an accessibility report.
type Auditor interface {
	Audit(ctx context.Context, url string) (*model.Report, error)
}

// ReportStore persists audit reports and hands back an opaque reference.
type ReportStore interface {
	Save(ctx context.Context, scanID int64, report *model.Report) (string, error)
	Load(ctx context.Context, ref string) (*model.Report, error)
}

// ScanDispatcher schedules background execution of a scan without blocking.
type ScanDispatcher interface {
	Dispatch(id int64)
}

// TokenVerifier validates a bearer token and returns the caller behind it.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (domainauth.Identity, error)
}
