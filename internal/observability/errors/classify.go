// Package errors classifies errors into low-cardinality labels for metrics and logs.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/target/a11y-scanner/internal/domain/model"
)

var knownClasses = []struct {
	target error
	class  string
}{
	{context.DeadlineExceeded, "timeout"},
	{context.Canceled, "canceled"},
	{model.ErrScanNotFound, "scan_not_found"},
	{model.ErrInvalidTransition, "invalid_transition"},
	{model.ErrInvalidScanURL, "invalid_url"},
	{model.ErrAuditFailed, "audit_failed"},
	{model.ErrReportStore, "report_store"},
	{model.ErrStorageUnavailable, "storage_unavailable"},
}

// Classify returns a normalized label for err. Known domain sentinels map to
// fixed names; anything else falls back to the innermost concrete type name.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	for _, k := range knownClasses {
		if goerrors.Is(err, k.target) {
			return k.class
		}
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
