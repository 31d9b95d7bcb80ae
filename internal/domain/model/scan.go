// Package model defines the core data types used throughout the scan lifecycle.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ScanStatus represents the lifecycle state of a scan job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ScanStatus string

const (
	// ScanStatusPending indicates the scan was accepted and is waiting for the runner.
	ScanStatusPending ScanStatus = "pending"
	// ScanStatusProcessing indicates the runner has claimed the scan and the audit is in flight.
	ScanStatusProcessing ScanStatus = "processing"
	// ScanStatusCompleted indicates the audit finished and its report was persisted.
	ScanStatusCompleted ScanStatus = "completed"
	// ScanStatusFailed indicates the audit or report persistence failed.
	ScanStatusFailed ScanStatus = "failed"
)

var (
	// ErrInvalidScanURL is returned when a submitted URL is not an absolute http(s) URL.
	ErrInvalidScanURL = errors.New("invalid scan url")
	// ErrScanNotFound is returned when a scan id does not exist.
	ErrScanNotFound = errors.New("scan not found")
	// ErrInvalidTransition is returned when an update would move a scan out of order.
	ErrInvalidTransition = errors.New("invalid scan status transition")
	// ErrAuditFailed wraps failures raised by an audit capability.
	ErrAuditFailed = errors.New("audit failed")
	// ErrReportStore wraps failures raised while persisting a report.
	ErrReportStore = errors.New("report store failure")
	// ErrStorageUnavailable is returned when the scan store cannot be reached.
	ErrStorageUnavailable = errors.New("scan storage unavailable")
)

// Valid returns true if the ScanStatus is one of the known states.
func (s ScanStatus) Valid() bool {
	switch s {
	case ScanStatusPending, ScanStatusProcessing, ScanStatusCompleted, ScanStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are permitted.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed
}

// CanTransitionTo reports whether moving from s to next respects
// pending -> processing -> {completed, failed}.
func (s ScanStatus) CanTransitionTo(next ScanStatus) bool {
	switch s {
	case ScanStatusPending:
		return next == ScanStatusProcessing
	case ScanStatusProcessing:
		return next == ScanStatusCompleted || next == ScanStatusFailed
	default:
		return false
	}
}

// Predecessor returns the only status a scan may hold before entering s.
func (s ScanStatus) Predecessor() (ScanStatus, bool) {
	switch s {
	case ScanStatusProcessing:
		return ScanStatusPending, true
	case ScanStatusCompleted, ScanStatusFailed:
		return ScanStatusProcessing, true
	default:
		return "", false
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for ScanStatus.
func (s *ScanStatus) UnmarshalText(text []byte) error {
	v := ScanStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid ScanStatus: %q", string(text))
	}
	*s = v
	return nil
}

// ScanJob is a single accessibility scan request and its evolving state.
type ScanJob struct {
	ID            int64           `json:"id"                         db:"id"`
	URL           string          `json:"url"                        db:"url"`
	Status        ScanStatus      `json:"status"                     db:"status"`
	CreatedAt     time.Time       `json:"created_at"                 db:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"       db:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at"               db:"completed_at"`
	ReportRef     *string         `json:"report_reference"           db:"report_reference"`
	ResultPayload json.RawMessage `json:"result_payload"             db:"result_payload"`
	LastError     *string         `json:"error,omitempty"            db:"last_error"`
}

// Clone returns a deep copy so callers can't mutate stored state.
func (j *ScanJob) Clone() *ScanJob {
	if j == nil {
		return nil
	}
	out := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.ReportRef != nil {
		r := *j.ReportRef
		out.ReportRef = &r
	}
	if j.LastError != nil {
		e := *j.LastError
		out.LastError = &e
	}
	if j.ResultPayload != nil {
		out.ResultPayload = append(json.RawMessage(nil), j.ResultPayload...)
	}
	return &out
}

// ScanTransition is the full set of fields written when a scan changes status.
type ScanTransition struct {
	To            ScanStatus
	At            time.Time
	ReportRef     string
	ResultPayload json.RawMessage
	Error         string
}

// Validate checks that the fields carried by t match its target status.
func (t ScanTransition) Validate() error {
	if t.At.IsZero() {
		return errors.New("transition time is required")
	}
	switch t.To {
	case ScanStatusProcessing:
		if t.ReportRef != "" || len(t.ResultPayload) > 0 || t.Error != "" {
			return errors.New("processing transition must not carry results")
		}
	case ScanStatusCompleted:
		if strings.TrimSpace(t.ReportRef) == "" {
			return errors.New("report reference is required")
		}
		if len(t.ResultPayload) == 0 || !json.Valid(t.ResultPayload) {
			return errors.New("result payload must be valid JSON")
		}
		if t.Error != "" {
			return errors.New("completed transition must not carry an error")
		}
	case ScanStatusFailed:
		if t.ReportRef != "" || len(t.ResultPayload) > 0 {
			return errors.New("failed transition must not carry results")
		}
	default:
		return fmt.Errorf("%w: cannot transition to %q", ErrInvalidTransition, t.To)
	}
	return nil
}

// Apply returns a copy of job with t applied, or ErrInvalidTransition.
func (t ScanTransition) Apply(job *ScanJob) (*ScanJob, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if !job.Status.CanTransitionTo(t.To) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, t.To)
	}

	out := job.Clone()
	out.Status = t.To
	at := t.At.UTC()
	switch t.To {
	case ScanStatusProcessing:
		out.StartedAt = &at
	case ScanStatusCompleted:
		ref := t.ReportRef
		out.CompletedAt = &at
		out.ReportRef = &ref
		out.ResultPayload = append(json.RawMessage(nil), t.ResultPayload...)
	case ScanStatusFailed:
		out.CompletedAt = &at
		if t.Error != "" {
			msg := t.Error
			out.LastError = &msg
		}
	}
	return out, nil
}

// CreateScanRequest is the body accepted by POST /scan.
type CreateScanRequest struct {
	URL string `json:"url"`
}
