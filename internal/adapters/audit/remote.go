package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/domain/model"
)

const (
	maxResponseBytes = 10 << 20
	maxErrorSnippet  = 512
)

var _ core.Auditor = (*RemoteAuditor)(nil)

// RemoteAuditorOptions configures a RemoteAuditor.
type RemoteAuditorOptions struct {
	Endpoint string        // Required: URL that accepts POST {"url": "..."}
	Timeout  time.Duration // Optional: per-request timeout, default 90s

	// ViolationsExpr selects the violations array from the engine response.
	// Empty means the response body already is a report.
	ViolationsExpr string

	// Client-credentials settings. Token requests are skipped when TokenURL is empty.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	HTTPClient *http.Client     // Optional: base transport
	Logger     *slog.Logger     // Optional
	Now        func() time.Time // Optional
}

// RemoteAuditor delegates audits to an external engine over HTTP.
type RemoteAuditor struct {
	endpoint string
	expr     string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// NewRemoteAuditor validates opts and builds the HTTP client, wrapping it with
// an OAuth2 client-credentials token source when a token URL is configured.
func NewRemoteAuditor(opts RemoteAuditorOptions) (*RemoteAuditor, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("audit endpoint is required")
	}
	expr := strings.TrimSpace(opts.ViolationsExpr)
	if expr != "" {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("compile violations expression: %w", err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: timeout}
	}

	client := base
	if tokenURL := strings.TrimSpace(opts.TokenURL); tokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       opts.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = cc.Client(ctx)
		client.Timeout = timeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &RemoteAuditor{
		endpoint: endpoint,
		expr:     expr,
		client:   client,
		logger:   logger.With("component", "remote_auditor"),
		now:      now,
	}, nil
}

// Audit implements core.Auditor. Every failure wraps model.ErrAuditFailed.
func (a *RemoteAuditor) Audit(ctx context.Context, url string) (*model.Report, error) {
	body, err := json.Marshal(model.CreateScanRequest{URL: url})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", model.ErrAuditFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", model.ErrAuditFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %w", model.ErrAuditFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", model.ErrAuditFailed, err)
	}
	if len(raw) > maxResponseBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", model.ErrAuditFailed, maxResponseBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: engine returned %d: %s", model.ErrAuditFailed, resp.StatusCode, snippet(raw))
	}

	a.logger.DebugContext(ctx, "audit engine responded",
		"url", url, "status", resp.StatusCode, "duration", time.Since(start))

	report, err := a.decode(url, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrAuditFailed, err)
	}
	return report, nil
}

func (a *RemoteAuditor) decode(url string, raw []byte) (*model.Report, error) {
	if a.expr == "" {
		var report model.Report
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		ts := report.Timestamp
		if ts.IsZero() {
			ts = a.now()
		}
		return model.NewReport(url, ts, report.Violations), nil
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	selected, err := jmespath.Search(a.expr, data)
	if err != nil {
		return nil, fmt.Errorf("evaluate violations expression: %w", err)
	}
	if selected == nil {
		return model.NewReport(url, a.now(), nil), nil
	}

	// Round-trip through JSON to map the selection onto typed violations.
	b, err := json.Marshal(selected)
	if err != nil {
		return nil, fmt.Errorf("marshal selected violations: %w", err)
	}
	var violations []model.Violation
	if err := json.Unmarshal(b, &violations); err != nil {
		return nil, fmt.Errorf("violations expression must select an array of violations: %w", err)
	}
	return model.NewReport(url, a.now(), violations), nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet] + "..."
	}
	return s
}
