package data

import (
	"errors"
	"fmt"

	"github.com/target/a11y-scanner/internal/domain/model"
	apperrors "github.com/target/a11y-scanner/internal/errors"
)

var (
	// ErrReportNotFound is returned when a report reference cannot be resolved.
	ErrReportNotFound = errors.New("report not found")
	// ErrInvalidReportRef is returned for references a store does not understand.
	ErrInvalidReportRef = errors.New("invalid report reference")
)

// wrapStoreErr maps a database error and tags connection failures with
// model.ErrStorageUnavailable so callers can branch with errors.Is.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	mapped := apperrors.MapDBError(err)
	if apperrors.IsUnavailable(mapped) {
		return fmt.Errorf("%s: %w: %w", op, model.ErrStorageUnavailable, mapped)
	}
	return fmt.Errorf("%s: %w", op, mapped)
}
