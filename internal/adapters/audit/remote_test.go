package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/a11y-scanner/internal/domain/model"
)

var fixedNow = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

func decodeURL(t *testing.T, r *http.Request) string {
	t.Helper()
	var body model.CreateScanRequest
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body.URL
}

func TestNewRemoteAuditor_Validation(t *testing.T) {
	_, err := NewRemoteAuditor(RemoteAuditorOptions{})
	require.Error(t, err)

	_, err = NewRemoteAuditor(RemoteAuditorOptions{Endpoint: "http://engine", ViolationsExpr: "results[?"})
	require.Error(t, err)
}

func TestRemoteAuditor_ReportResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		url := decodeURL(t, r)
		_, _ = w.Write([]byte(`{"url":"` + url + `","violations":[{"id":"color-contrast","impact":"serious","description":"d","help":"h","nodes":[{"target":["#a"]}]}]}`))
	}))
	defer srv.Close()

	a, err := NewRemoteAuditor(RemoteAuditorOptions{Endpoint: srv.URL, Now: fixedNow})
	require.NoError(t, err)

	report, err := a.Audit(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", report.URL)
	assert.Equal(t, fixedNow(), report.Timestamp)
	assert.Equal(t, "example.com", report.Domain)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "color-contrast", report.Violations[0].ID)
	require.Len(t, report.Violations[0].Nodes, 1)
	assert.JSONEq(t, `{"target":["#a"]}`, string(report.Violations[0].Nodes[0]))
}

func TestRemoteAuditor_ViolationsExpression(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"engine":"axe","result":{"violations":[
			{"id":"image-alt","impact":"critical","description":"d1","help":"h1"},
			{"id":"label","impact":"minor","description":"d2","help":"h2"}
		]}}`))
	}))
	defer srv.Close()

	a, err := NewRemoteAuditor(RemoteAuditorOptions{
		Endpoint:       srv.URL,
		ViolationsExpr: "result.violations[?impact != 'minor']",
		Now:            fixedNow,
	})
	require.NoError(t, err)

	report, err := a.Audit(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "image-alt", report.Violations[0].ID)
	assert.NotNil(t, report.Violations[0].Nodes)
}

func TestRemoteAuditor_ExpressionSelectsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	a, err := NewRemoteAuditor(RemoteAuditorOptions{Endpoint: srv.URL, ViolationsExpr: "result.violations", Now: fixedNow})
	require.NoError(t, err)

	report, err := a.Audit(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Empty(t, report.Violations)
	assert.NotNil(t, report.Violations)
}

func TestRemoteAuditor_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		expr    string
		wantMsg string
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "engine overloaded", http.StatusServiceUnavailable)
			},
			wantMsg: "503",
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			wantMsg: "decode report",
		},
		{
			name: "selection is not an array",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"result":{"violations":"none"}}`))
			},
			expr:    "result.violations",
			wantMsg: "array of violations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			a, err := NewRemoteAuditor(RemoteAuditorOptions{Endpoint: srv.URL, ViolationsExpr: tt.expr})
			require.NoError(t, err)

			_, err = a.Audit(context.Background(), "https://example.com/")
			require.ErrorIs(t, err, model.ErrAuditFailed)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRemoteAuditor_ContextTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	a, err := NewRemoteAuditor(RemoteAuditorOptions{Endpoint: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = a.Audit(ctx, "https://example.com/")
	require.ErrorIs(t, err, model.ErrAuditFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemoteAuditor_ClientCredentials(t *testing.T) {
	var tokenRequests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "audit.run", r.Form.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"engine-token","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("POST /audit", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer engine-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"violations":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a, err := NewRemoteAuditor(RemoteAuditorOptions{
		Endpoint:     srv.URL + "/audit",
		TokenURL:     srv.URL + "/token",
		ClientID:     "scanner",
		ClientSecret: "s3cret",
		Scopes:       []string{"audit.run"},
	})
	require.NoError(t, err)

	for range 2 {
		report, err := a.Audit(context.Background(), "https://example.com/")
		require.NoError(t, err)
		assert.Empty(t, report.Violations)
	}
	assert.Equal(t, int32(1), tokenRequests.Load(), "token should be cached between audits")
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("x", maxErrorSnippet+10)
	assert.Len(t, snippet([]byte(long)), maxErrorSnippet+3)
	assert.Equal(t, "short", snippet([]byte("  short \n")))
}
