package config

import (
	"fmt"
	"strings"
	"time"
)

// ScanStoreKind selects the scan repository implementation.
type ScanStoreKind string

const (
	ScanStorePostgres ScanStoreKind = "postgres"
	ScanStoreMemory   ScanStoreKind = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for ScanStoreKind.
func (k *ScanStoreKind) UnmarshalText(text []byte) error {
	v := ScanStoreKind(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case ScanStorePostgres, ScanStoreMemory:
		*k = v
		return nil
	default:
		return fmt.Errorf("invalid SCAN_STORE: %q (valid options: postgres, memory)", v)
	}
}

// ReportStoreKind selects where audit reports are persisted.
type ReportStoreKind string

const (
	ReportStoreFile  ReportStoreKind = "file"
	ReportStoreRedis ReportStoreKind = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for ReportStoreKind.
func (k *ReportStoreKind) UnmarshalText(text []byte) error {
	v := ReportStoreKind(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case ReportStoreFile, ReportStoreRedis:
		*k = v
		return nil
	default:
		return fmt.Errorf("invalid REPORT_STORE: %q (valid options: file, redis)", v)
	}
}

// StorageConfig groups scan, report and cache storage selection.
type StorageConfig struct {
	ScanStore   ScanStoreKind   `env:"SCAN_STORE"   envDefault:"postgres"`
	ReportStore ReportStoreKind `env:"REPORT_STORE" envDefault:"file"`

	// ReportsDir is where the file report store writes scan_<id>.json.
	ReportsDir string `env:"REPORTS_DIR" envDefault:"data/reports"`

	// ReportsRedisTTL expires Redis-stored reports. Zero keeps them forever.
	ReportsRedisTTL time.Duration `env:"REPORTS_REDIS_TTL" envDefault:"0s"`

	// CacheEnabled caches terminal scans in Redis in front of the scan store.
	CacheEnabled bool          `env:"SCAN_CACHE_ENABLED" envDefault:"false"`
	CacheTTL     time.Duration `env:"SCAN_CACHE_TTL"     envDefault:"10m"`
}

// Sanitize applies guardrails to storage configuration values.
func (s *StorageConfig) Sanitize() {
	if s.ScanStore == "" {
		s.ScanStore = ScanStorePostgres
	}
	if s.ReportStore == "" {
		s.ReportStore = ReportStoreFile
	}
	if s.ReportsDir = strings.TrimSpace(s.ReportsDir); s.ReportsDir == "" {
		s.ReportsDir = "data/reports"
	}
	if s.ReportsRedisTTL < 0 {
		s.ReportsRedisTTL = 0
	}
	if s.CacheTTL < time.Second {
		s.CacheTTL = time.Second
	}
}
