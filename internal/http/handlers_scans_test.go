package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/a11y-scanner/internal/adapters/audit"
	"github.com/target/a11y-scanner/internal/data"
	"github.com/target/a11y-scanner/internal/domain/model"
	"github.com/target/a11y-scanner/internal/mocks"
	"github.com/target/a11y-scanner/internal/service"
	"github.com/target/a11y-scanner/internal/testutil"
)

func newScanHandlersWithMock(t *testing.T) (*ScanHandlers, *mocks.MockScanRepository, *mocks.MockScanDispatcher) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanRepository(ctrl)
	dispatcher := mocks.NewMockScanDispatcher(ctrl)
	svc, err := service.NewScanService(service.ScanServiceOptions{Repo: repo, Dispatcher: dispatcher})
	require.NoError(t, err)
	return &ScanHandlers{Svc: svc}, repo, dispatcher
}

func decodeError(t *testing.T, body *bytes.Buffer) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	return resp
}

func TestCreateScan_Success(t *testing.T) {
	h, repo, dispatcher := newScanHandlersWithMock(t)
	created := testutil.NewScan().WithID(1).Build()

	repo.EXPECT().Create(gomock.Any(), "https://example.com/").Return(created, nil)
	dispatcher.EXPECT().Dispatch(int64(1))

	r := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(`{"url":"https://example.com"}`))
	w := httptest.NewRecorder()
	h.CreateScan(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.InDelta(t, 1, got["id"], 0)
	assert.Equal(t, "pending", got["status"])
	assert.Contains(t, got, "completed_at")
	assert.Nil(t, got["completed_at"])
	assert.Nil(t, got["report_reference"])
	assert.Nil(t, got["result_payload"])
}

func TestCreateScan_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		setup    func(repo *mocks.MockScanRepository)
		wantCode int
		wantErr  string
	}{
		{
			name:     "malformed json",
			body:     `{"url":`,
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_json",
		},
		{
			name:     "missing url",
			body:     `{}`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "invalid_url",
		},
		{
			name:     "unsupported scheme",
			body:     `{"url":"ftp://example.com/file"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "invalid_url",
		},
		{
			name: "storage unavailable",
			body: `{"url":"https://example.com"}`,
			setup: func(repo *mocks.MockScanRepository) {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, model.ErrStorageUnavailable)
			},
			wantCode: http.StatusServiceUnavailable,
			wantErr:  "storage_unavailable",
		},
		{
			name: "unexpected failure",
			body: `{"url":"https://example.com"}`,
			setup: func(repo *mocks.MockScanRepository) {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))
			},
			wantCode: http.StatusInternalServerError,
			wantErr:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, repo, _ := newScanHandlersWithMock(t)
			if tt.setup != nil {
				tt.setup(repo)
			}

			r := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.CreateScan(w, r)

			require.Equal(t, tt.wantCode, w.Code)
			resp := decodeError(t, w.Body)
			assert.Equal(t, tt.wantErr, resp.Error)
			assert.NotContains(t, resp.Message, "boom")
		})
	}
}

func TestGetScan(t *testing.T) {
	h, repo, _ := newScanHandlersWithMock(t)
	completed := testutil.NewScan().WithID(7).
		Processing(testutil.TestTime()).
		Completed(testutil.TestTime(), "data/reports/scan_7.json", json.RawMessage(`{"violations":[]}`)).
		Build()

	repo.EXPECT().GetByID(gomock.Any(), int64(7)).Return(completed, nil)
	repo.EXPECT().GetByID(gomock.Any(), int64(404)).Return(nil, model.ErrScanNotFound)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /scan/{id}", h.GetScan)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scan/7", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var got model.ScanJob
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, model.ScanStatusCompleted, got.Status)
		require.NotNil(t, got.ReportRef)
		assert.Equal(t, "data/reports/scan_7.json", *got.ReportRef)
		assert.JSONEq(t, `{"violations":[]}`, string(got.ResultPayload))
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scan/404", nil))

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"scan_not_found","message":"Scan not found"}`, w.Body.String())
	})

	t.Run("non-positive id", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scan/0", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-integer id", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scan/abc", nil))

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "invalid_id", decodeError(t, w.Body).Error)
	})
}

// Submit then poll through the full router with the in-memory store and a
// real runner.
func TestScanAPI_SubmitAndPoll(t *testing.T) {
	repo := data.NewMemoryScanRepo(nil)
	reports, err := data.NewFileReportStore(t.TempDir())
	require.NoError(t, err)

	runner, err := service.NewScanRunner(service.ScanRunnerOptions{
		Repo:    repo,
		Auditor: &audit.StubAuditor{},
		Reports: reports,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = runner.Shutdown(t.Context()) })

	svc, err := service.NewScanService(service.ScanServiceOptions{Repo: repo, Dispatcher: runner})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(RouterServices{Scans: svc, MaxBodyBytes: 1 << 16}))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/scan", "application/json", strings.NewReader(`{"url":"https://example.com"}`))
	require.NoError(t, err)
	var submitted model.ScanJob
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.ScanStatusPending, submitted.Status)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/scan/" + strconv.FormatInt(submitted.ID, 10))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var got model.ScanJob
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			return false
		}
		return got.Status == model.ScanStatusCompleted && got.ReportRef != nil && got.CompletedAt != nil
	}, 5*time.Second, 10*time.Millisecond)
}
