// Package httpx exposes the scan API over HTTP.
package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/target/a11y-scanner/internal/domain/model"
)

// ScanService is the subset of service.ScanService used by the handlers.
type ScanService interface {
	Submit(ctx context.Context, rawURL string) (*model.ScanJob, error)
	Get(ctx context.Context, id int64) (*model.ScanJob, error)
}

// ScanHandlers provides HTTP handlers for scan submission and polling.
type ScanHandlers struct {
	Svc    ScanService
	Logger *slog.Logger
}

var (
	errScanNotFound = errors.New("Scan not found") //nolint:staticcheck // client-facing message
	errInternal     = errors.New("internal server error")
)

// CreateScan handles POST /scan. The audit runs in the background; the
// response carries the pending scan record.
func (h *ScanHandlers) CreateScan(w http.ResponseWriter, r *http.Request) {
	var req model.CreateScanRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Submit(r.Context(), req.URL)
	if err != nil {
		h.writeScanError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// GetScan handles GET /scan/{id}.
func (h *ScanHandlers) GetScan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnprocessableEntity,
			ErrCode: "invalid_id",
			Err:     errors.New("scan id must be an integer"),
		})
		return
	}

	job, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeScanError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

func (h *ScanHandlers) writeScanError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidScanURL):
		WriteError(w, ErrorParams{Code: http.StatusUnprocessableEntity, ErrCode: "invalid_url", Err: err})
	case errors.Is(err, model.ErrScanNotFound):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "scan_not_found", Err: errScanNotFound})
	case errors.Is(err, model.ErrStorageUnavailable):
		h.log().WarnContext(r.Context(), "scan storage unavailable", "path", r.URL.Path, "error", err)
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "storage_unavailable", Err: model.ErrStorageUnavailable})
	default:
		h.log().ErrorContext(r.Context(), "scan request failed", "path", r.URL.Path, "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: errInternal})
	}
}

func (h *ScanHandlers) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
