package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/a11y-scanner/internal/domain/model"
	"github.com/target/a11y-scanner/internal/observability/statsd"
)

func TestEmitScanLifecycle(t *testing.T) {
	var rec statsd.Recorder

	EmitScanLifecycle(&rec, ScanMetric{
		Transition: TransitionFailed,
		Result:     ResultError,
		Duration:   2 * time.Second,
		Err:        fmt.Errorf("audit: %w", model.ErrAuditFailed),
	})

	counts := rec.Find("scan.lifecycle", map[string]string{"transition": "failed"})
	require.Len(t, counts, 1)
	assert.Equal(t, "audit_failed", counts[0].Tags["error_class"])

	timings := rec.Find("scan.duration", nil)
	require.Len(t, timings, 1)
	assert.InDelta(t, 2000, timings[0].Value, 0.001)
}

func TestEmitScanLifecycle_NoDurationNoTiming(t *testing.T) {
	var rec statsd.Recorder
	EmitScanLifecycle(&rec, ScanMetric{Transition: TransitionSubmitted, Result: ResultSuccess})

	assert.Len(t, rec.Find("scan.lifecycle", nil), 1)
	assert.Empty(t, rec.Find("scan.duration", nil))
	_, hasClass := rec.Samples()[0].Tags["error_class"]
	assert.False(t, hasClass)

	EmitScanLifecycle(nil, ScanMetric{})
}

func TestEmitReconcile(t *testing.T) {
	var rec statsd.Recorder

	EmitReconcile(&rec, ReconcileMetric{Step: "fail_stale_processing", Count: 0})
	EmitReconcile(&rec, ReconcileMetric{Step: "redispatch_pending", Count: 3, Duration: time.Millisecond})
	EmitReconcile(&rec, ReconcileMetric{Step: "fail_stale_processing", Err: errors.New("boom")})

	assert.Len(t, rec.Find("reconciler.runs", map[string]string{"result": ResultNoop}), 1)
	assert.Len(t, rec.Find("reconciler.runs", map[string]string{"result": ResultError}), 1)

	scans := rec.Find("reconciler.scans", map[string]string{"step": "redispatch_pending"})
	require.Len(t, scans, 1)
	assert.InDelta(t, 3, scans[0].Value, 0)
}
