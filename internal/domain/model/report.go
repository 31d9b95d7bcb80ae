package model

import (
	"encoding/json"
	"time"
)

// Violation is a single accessibility rule failure found by an audit. Nodes are
// kept raw since audit engines describe matched elements differently.
type Violation struct {
	ID          string            `json:"id"`
	Impact      string            `json:"impact"`
	Description string            `json:"description"`
	Help        string            `json:"help"`
	Nodes       []json.RawMessage `json:"nodes"`
}

// Report is the structured output of an audit.
type Report struct {
	URL        string      `json:"url"`
	Timestamp  time.Time   `json:"timestamp"`
	Domain     string      `json:"domain,omitempty"`
	Violations []Violation `json:"violations"`
}

// NewReport builds a report for url stamped at ts (UTC) with domain metadata filled in.
func NewReport(url string, ts time.Time, violations []Violation) *Report {
	if violations == nil {
		violations = []Violation{}
	}
	for i := range violations {
		if violations[i].Nodes == nil {
			violations[i].Nodes = []json.RawMessage{}
		}
	}
	return &Report{
		URL:        url,
		Timestamp:  ts.UTC(),
		Domain:     RegistrableDomain(url),
		Violations: violations,
	}
}
