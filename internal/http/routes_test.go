package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/target/a11y-scanner/internal/domain/auth"
	"github.com/target/a11y-scanner/internal/mocks"
	"github.com/target/a11y-scanner/internal/service"
	"github.com/target/a11y-scanner/internal/testutil"
)

func newTestRouter(t *testing.T, services RouterServices) (http.Handler, *mocks.MockScanRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanRepository(ctrl)
	svc, err := service.NewScanService(service.ScanServiceOptions{
		Repo:       repo,
		Dispatcher: mocks.NewMockScanDispatcher(ctrl),
	})
	require.NoError(t, err)
	services.Scans = svc
	return NewRouter(services), repo
}

func TestRouter_HealthBypassesAuth(t *testing.T) {
	ctrl := gomock.NewController(t)
	h, _ := newTestRouter(t, RouterServices{Verifier: mocks.NewMockTokenVerifier(ctrl)})

	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_ScanRoutesRequireBearerWhenConfigured(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockTokenVerifier(ctrl)
	h, repo := newTestRouter(t, RouterServices{Verifier: verifier})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scan/3", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	verifier.EXPECT().Verify(gomock.Any(), "tok").Return(domainauth.Identity{Subject: "svc"}, nil)
	repo.EXPECT().GetByID(gomock.Any(), int64(3)).Return(testutil.NewScan().WithID(3).Build(), nil)

	r := httptest.NewRequest(http.MethodGet, "/scan/3", nil)
	r.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MethodAndPathMatching(t *testing.T) {
	h, _ := newTestRouter(t, RouterServices{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/scan/1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_BodyLimit(t *testing.T) {
	h, _ := newTestRouter(t, RouterServices{MaxBodyBytes: 32})

	body := `{"url":"https://example.com/` + strings.Repeat("a", 64) + `"}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(body)))

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "request_too_large", decodeError(t, w.Body).Error)
}

func TestRouter_AppliesCORSMiddleware(t *testing.T) {
	called := false
	cors := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.Header().Set("Access-Control-Allow-Origin", "*")
			next.ServeHTTP(w, r)
		})
	}
	h, _ := newTestRouter(t, RouterServices{CORS: cors})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.True(t, called)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}
