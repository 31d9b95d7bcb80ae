package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/a11y-scanner/internal/core"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Scans ScanService // Required

	// Optional: readiness probes run by /readyz.
	Readiness []ReadinessCheck
	// Optional: when set, /scan routes require a verified bearer token.
	Verifier core.TokenVerifier
	// Optional: applied between Logging and the routes (e.g. rs/cors).
	CORS Middleware
	// MaxBodyBytes caps request bodies; zero disables the limit.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// NewRouter creates the HTTP handler. Middleware order, outermost first:
// Recover, RequestID, Logging, CORS, then per-route auth.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	scans := &ScanHandlers{Svc: services.Scans, Logger: logger}
	registerScanRoutes(mux, scans, services.Verifier, logger)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	ready := readyHandler(services.Readiness)
	mux.Handle("GET /readyz", ready)
	mux.Handle("HEAD /readyz", ready)

	var h http.Handler = mux
	if services.MaxBodyBytes > 0 {
		h = limitBody(h, services.MaxBodyBytes)
	}
	if services.CORS != nil {
		h = services.CORS(h)
	}
	h = Logging(logger)(h)
	h = RequestID()(h)
	return Recover(logger)(h)
}

func registerScanRoutes(mux *http.ServeMux, h *ScanHandlers, verifier core.TokenVerifier, logger *slog.Logger) {
	protect := func(fn http.HandlerFunc) http.Handler {
		if verifier == nil {
			return fn
		}
		return RequireBearer(verifier, logger)(fn)
	}

	mux.Handle("POST /scan", protect(h.CreateScan))
	mux.Handle("GET /scan/{id}", protect(h.GetScan))
}

func limitBody(next http.Handler, n int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, n)
		}
		next.ServeHTTP(w, r)
	})
}
