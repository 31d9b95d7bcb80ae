package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/target/a11y-scanner/internal/domain/model"
)

// DefaultReportsDir is where FileReportStore writes when no directory is configured.
const DefaultReportsDir = "data/reports"

// FileReportStore writes one pretty-printed JSON file per scan,
// <dir>/scan_<id>.json. The reference handed back is that path.
type FileReportStore struct {
	dir string
}

// NewFileReportStore creates the report directory if needed.
func NewFileReportStore(dir string) (*FileReportStore, error) {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultReportsDir
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}
	return &FileReportStore{dir: dir}, nil
}

// Dir returns the directory reports are written to.
func (s *FileReportStore) Dir() string {
	return s.dir
}

func (s *FileReportStore) pathFor(scanID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("scan_%d.json", scanID))
}

// Save writes report atomically: a temp file in the same directory is renamed
// over the final path so readers never see a partial report.
func (s *FileReportStore) Save(ctx context.Context, scanID int64, report *model.Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrReportStore, err)
	}
	if report == nil {
		return "", fmt.Errorf("%w: report is nil", model.ErrReportStore)
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: marshal report: %w", model.ErrReportStore, err)
	}

	final := s.pathFor(scanID)
	tmp := filepath.Join(s.dir, ".scan_"+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, body, 0o640); err != nil {
		return "", fmt.Errorf("%w: write report: %w", model.ErrReportStore, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: publish report: %w", model.ErrReportStore, err)
	}
	return final, nil
}

// Load reads a report previously written by Save. Only paths inside the
// store's directory are accepted.
func (s *FileReportStore) Load(_ context.Context, ref string) (*model.Report, error) {
	clean := filepath.Clean(ref)
	if filepath.Dir(clean) != filepath.Clean(s.dir) || !strings.HasPrefix(filepath.Base(clean), "scan_") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReportRef, ref)
	}

	body, err := os.ReadFile(clean)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", ref, err)
	}
	return &report, nil
}
