// Package audit provides implementations of core.Auditor.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/domain/model"
)

var _ core.Auditor = (*StubAuditor)(nil)

// StubAuditor returns the same single image-alt violation for every URL.
// It stands in for a browser-based engine in development and tests.
type StubAuditor struct {
	Now func() time.Time
}

// StubViolation is the violation reported by StubAuditor.
func StubViolation() model.Violation {
	return model.Violation{
		ID:          "image-alt",
		Impact:      "moderate",
		Description: "Images should have alt text",
		Help:        "Provide alternative text for images",
	}
}

// Audit implements core.Auditor.
func (a *StubAuditor) Audit(ctx context.Context, url string) (*model.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrAuditFailed, err)
	}
	now := time.Now
	if a != nil && a.Now != nil {
		now = a.Now
	}
	return model.NewReport(url, now(), []model.Violation{StubViolation()}), nil
}
