package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Bearer authentication
//   - audit.go: Audit engine selection
//   - database.go: Database and Redis connections
//   - http.go: HTTP server and CORS
//   - services.go: Service modes, runner and reconciler
//   - storage.go: Scan store, report store and scan cache
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, text log handler).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is the minimum slog level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// SecretsEncryptionKey decrypts "v1:" envelopes found in secret settings.
	SecretsEncryptionKey string `env:"SECRETS_ENCRYPTION_KEY"`

	Auth AuthConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	// Services is a comma-delimited list of enabled services.
	Services string `env:"SERVICES" envDefault:"http,reconciler"`

	Storage    StorageConfig
	Runner     RunnerConfig
	Reconciler ReconcilerConfig
	Audit      AuditConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Storage.Sanitize()
	c.Runner.Sanitize()
	c.Reconciler.Sanitize(c.Runner.AuditTimeout)
	c.Audit.Sanitize()
	c.Auth.Sanitize()
	c.Observability.Sanitize()

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsReconcilerEnabled returns true if the reconciliation sweep is enabled.
func (c *AppConfig) IsReconcilerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReconciler]
}

// NeedsDatabase reports whether any configured component uses Postgres.
func (c *AppConfig) NeedsDatabase() bool {
	return c.Storage.ScanStore == ScanStorePostgres
}

// NeedsRedis reports whether any configured component uses Redis.
func (c *AppConfig) NeedsRedis() bool {
	return c.Storage.ReportStore == ReportStoreRedis || c.Storage.CacheEnabled
}
