package config

import (
	"fmt"
	"strings"
	"time"
)

// AuditMode selects the audit engine.
type AuditMode string

const (
	// AuditModeStub returns a fixed report without contacting anything.
	AuditModeStub AuditMode = "stub"
	// AuditModeRemote delegates to an external audit engine over HTTP.
	AuditModeRemote AuditMode = "remote"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuditMode.
func (m *AuditMode) UnmarshalText(text []byte) error {
	v := AuditMode(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case AuditModeStub, AuditModeRemote:
		*m = v
		return nil
	default:
		return fmt.Errorf("invalid AUDIT_MODE: %q (valid options: stub, remote)", v)
	}
}

// RemoteAuditConfig configures the HTTP audit engine client.
type RemoteAuditConfig struct {
	Endpoint string        `env:"ENDPOINT"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"90s"`

	// ViolationsExpr is a JMESPath expression selecting the violations array
	// from the engine response. Empty means the response is a Report.
	ViolationsExpr string `env:"VIOLATIONS_EXPR"`

	// OAuth2 client-credentials settings. TokenURL empty disables auth.
	TokenURL     string   `env:"TOKEN_URL"`
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"` // may be a "v1:" envelope
	Scopes       []string `env:"SCOPES"        envSeparator:" "`
}

// AuditConfig groups audit engine configuration.
type AuditConfig struct {
	Mode   AuditMode         `env:"AUDIT_MODE" envDefault:"stub"`
	Remote RemoteAuditConfig `                                   envPrefix:"AUDIT_REMOTE_"`
}

// Sanitize applies guardrails to audit configuration values.
func (a *AuditConfig) Sanitize() {
	if a.Mode == "" {
		a.Mode = AuditModeStub
	}
	a.Remote.Endpoint = strings.TrimSpace(a.Remote.Endpoint)
	a.Remote.TokenURL = strings.TrimSpace(a.Remote.TokenURL)
	a.Remote.ViolationsExpr = strings.TrimSpace(a.Remote.ViolationsExpr)
	if a.Remote.Timeout <= 0 {
		a.Remote.Timeout = 90 * time.Second
	}
}

// Validate reports missing settings for the selected mode.
func (a *AuditConfig) Validate() error {
	if a.Mode == AuditModeRemote && a.Remote.Endpoint == "" {
		return fmt.Errorf("AUDIT_MODE=remote requires AUDIT_REMOTE_ENDPOINT")
	}
	return nil
}
