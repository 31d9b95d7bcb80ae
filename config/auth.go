package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the authentication mode for the scan API.
type AuthMode string

const (
	// AuthModeNone leaves the API unauthenticated.
	AuthModeNone AuthMode = "none"
	// AuthModeOIDC requires a bearer ID token verified against an OIDC issuer.
	AuthModeOIDC AuthMode = "oidc"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "", "none":
		*a = AuthModeNone
		return nil
	case "oidc":
		*a = AuthModeOIDC
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: none, oidc)", v)
	}
}

// OIDCConfig holds the issuer used to verify bearer tokens.
type OIDCConfig struct {
	IssuerURL string `env:"ISSUER_URL"`
	ClientID  string `env:"CLIENT_ID"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	Mode AuthMode   `env:"AUTH_MODE" envDefault:"none"`
	OIDC OIDCConfig `                                  envPrefix:"OIDC_"`
}

// Sanitize trims whitespace from issuer settings.
func (a *AuthConfig) Sanitize() {
	a.OIDC.IssuerURL = strings.TrimRight(strings.TrimSpace(a.OIDC.IssuerURL), "/")
	a.OIDC.ClientID = strings.TrimSpace(a.OIDC.ClientID)
}

// Validate reports missing settings for the selected mode.
func (a *AuthConfig) Validate() error {
	if a.Mode != AuthModeOIDC {
		return nil
	}
	if a.OIDC.IssuerURL == "" || a.OIDC.ClientID == "" {
		return fmt.Errorf("AUTH_MODE=oidc requires OIDC_ISSUER_URL and OIDC_CLIENT_ID")
	}
	return nil
}
