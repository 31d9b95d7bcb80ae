package testutil

import (
	"encoding/json"
	"time"

	"github.com/target/a11y-scanner/internal/domain/model"
)

// ScanBuilder builds model.ScanJob fixtures.
type ScanBuilder struct {
	job model.ScanJob
}

// NewScan starts a pending scan of https://example.com/ created at TestTime.
func NewScan() *ScanBuilder {
	return &ScanBuilder{job: model.ScanJob{
		ID:        1,
		URL:       "https://example.com/",
		Status:    model.ScanStatusPending,
		CreatedAt: TestTime(),
	}}
}

// WithID sets the scan id.
func (b *ScanBuilder) WithID(id int64) *ScanBuilder {
	b.job.ID = id
	return b
}

// WithURL sets the scan url.
func (b *ScanBuilder) WithURL(u string) *ScanBuilder {
	b.job.URL = u
	return b
}

// Processing marks the scan as started at t.
func (b *ScanBuilder) Processing(t time.Time) *ScanBuilder {
	b.job.Status = model.ScanStatusProcessing
	b.job.StartedAt = TimePtr(t)
	return b
}

// Completed marks the scan as completed with the given reference and payload.
func (b *ScanBuilder) Completed(t time.Time, ref string, payload json.RawMessage) *ScanBuilder {
	if b.job.StartedAt == nil {
		b.job.StartedAt = TimePtr(t)
	}
	b.job.Status = model.ScanStatusCompleted
	b.job.CompletedAt = TimePtr(t)
	b.job.ReportRef = StringPtr(ref)
	b.job.ResultPayload = payload
	return b
}

// Failed marks the scan as failed with reason.
func (b *ScanBuilder) Failed(t time.Time, reason string) *ScanBuilder {
	if b.job.StartedAt == nil {
		b.job.StartedAt = TimePtr(t)
	}
	b.job.Status = model.ScanStatusFailed
	b.job.CompletedAt = TimePtr(t)
	if reason != "" {
		b.job.LastError = StringPtr(reason)
	}
	return b
}

// Build returns a copy of the built scan.
func (b *ScanBuilder) Build() *model.ScanJob {
	return b.job.Clone()
}

// NewStubReport returns a report with a single image-alt violation.
func NewStubReport(url string) *model.Report {
	return model.NewReport(url, TestTime(), []model.Violation{{
		ID:          "image-alt",
		Impact:      "moderate",
		Description: "Images should have alt text",
		Help:        "Provide alternative text for images",
	}})
}
