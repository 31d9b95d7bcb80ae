package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/a11y-scanner/internal/domain/model"
)

func TestStubAuditor_Audit(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	a := &StubAuditor{Now: func() time.Time { return ts }}

	report, err := a.Audit(context.Background(), "https://www.example.co.uk/")
	require.NoError(t, err)

	assert.Equal(t, "https://www.example.co.uk/", report.URL)
	assert.Equal(t, ts.UTC(), report.Timestamp)
	assert.Equal(t, "example.co.uk", report.Domain)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, StubViolation().ID, report.Violations[0].ID)
	assert.NotNil(t, report.Violations[0].Nodes)
}

func TestStubAuditor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var a *StubAuditor
	_, err := a.Audit(ctx, "https://example.com/")
	require.ErrorIs(t, err, model.ErrAuditFailed)
	require.ErrorIs(t, err, context.Canceled)
}
