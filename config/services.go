package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the scan API together with the in-process runner.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeReconciler runs the periodic reconciliation sweep.
	ServiceModeReconciler ServiceMode = "reconciler"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeReconciler}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if strings.TrimSpace(servicesStr) == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeReconciler:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, reconciler)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// RunnerConfig controls in-process scan execution.
type RunnerConfig struct {
	// Concurrency bounds how many audits run at once.
	Concurrency int `env:"RUNNER_CONCURRENCY" envDefault:"8"`

	// AuditTimeout bounds one audit call. Zero disables the bound.
	AuditTimeout time.Duration `env:"RUNNER_AUDIT_TIMEOUT" envDefault:"2m"`

	// FinalizeTimeout bounds the terminal store writes, which ignore caller cancellation.
	FinalizeTimeout time.Duration `env:"RUNNER_FINALIZE_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to runner configuration values.
func (r *RunnerConfig) Sanitize() {
	if r.Concurrency < 1 {
		r.Concurrency = 1
	}
	if r.Concurrency > 256 {
		r.Concurrency = 256
	}
	if r.AuditTimeout < 0 {
		r.AuditTimeout = 0
	}
	if r.FinalizeTimeout < time.Second {
		r.FinalizeTimeout = time.Second
	}
}

// ReconcilerConfig contains reconciliation sweep configuration.
type ReconcilerConfig struct {
	// Interval is the reconciler tick interval.
	Interval time.Duration `env:"RECONCILER_INTERVAL" envDefault:"1m"`

	// ProcessingMaxAge is how long a scan may stay processing before it is failed.
	ProcessingMaxAge time.Duration `env:"RECONCILER_PROCESSING_MAX_AGE" envDefault:"15m"`

	// PendingGrace is how long a scan may stay pending before it is re-dispatched.
	PendingGrace time.Duration `env:"RECONCILER_PENDING_GRACE" envDefault:"2m"`

	// BatchSize is the maximum number of rows to process per operation.
	BatchSize int `env:"RECONCILER_BATCH_SIZE" envDefault:"500"`

	// ReconcileOnStart runs one sweep before the HTTP server starts serving.
	ReconcileOnStart bool `env:"RECONCILER_ON_START" envDefault:"true"`
}

// Sanitize applies guardrails to reconciler configuration values. The
// processing deadline never drops below the audit timeout, otherwise healthy
// scans would be failed mid-audit.
func (r *ReconcilerConfig) Sanitize(auditTimeout time.Duration) {
	if r.Interval < 5*time.Second {
		r.Interval = 5 * time.Second
	}
	if r.ProcessingMaxAge < time.Minute {
		r.ProcessingMaxAge = time.Minute
	}
	if auditTimeout > 0 && r.ProcessingMaxAge < auditTimeout+time.Minute {
		r.ProcessingMaxAge = auditTimeout + time.Minute
	}
	if r.PendingGrace < 10*time.Second {
		r.PendingGrace = 10 * time.Second
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
