// Package metrics emits standardised scan lifecycle and reconciliation metrics.
package metrics

import (
	"time"

	obserrors "github.com/target/a11y-scanner/internal/observability/errors"
	"github.com/target/a11y-scanner/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Transition labels used on scan.lifecycle.
const (
	TransitionSubmitted  = "submitted"
	TransitionProcessing = "processing"
	TransitionCompleted  = "completed"
	TransitionFailed     = "failed"
)

// ScanMetric captures one scan lifecycle event.
type ScanMetric struct {
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitScanLifecycle counts the transition and, when set, records its duration.
func EmitScanLifecycle(sink statsd.Sink, in ScanMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("scan.lifecycle", 1, tags)
	if in.Duration > 0 {
		sink.Timing("scan.duration", in.Duration, CloneTags(tags))
	}
}

// ReconcileMetric describes one reconciler sweep step.
type ReconcileMetric struct {
	Step     string // "fail_stale_processing" or "redispatch_pending"
	Count    int64
	Duration time.Duration
	Err      error
}

// EmitReconcile records the outcome of a reconciler step.
func EmitReconcile(sink statsd.Sink, in ReconcileMetric) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case in.Count == 0:
		result = ResultNoop
	}

	tags := map[string]string{"step": in.Step, "result": result}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}

	sink.Count("reconciler.runs", 1, tags)
	if in.Count > 0 {
		sink.Count("reconciler.scans", in.Count, CloneTags(tags))
	}
	if in.Duration > 0 {
		sink.Timing("reconciler.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
