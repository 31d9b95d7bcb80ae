package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/a11y-scanner/internal/data/pgxutil"
	"github.com/target/a11y-scanner/internal/domain/model"
)

// ScanRepoOptions holds configuration options for the scan repository.
type ScanRepoOptions struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// ScanRepo stores scan jobs in PostgreSQL.
type ScanRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewScanRepo creates a new ScanRepo backed by db.
func NewScanRepo(db *sql.DB, opts ScanRepoOptions) *ScanRepo {
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := opts.Logger
	if logger != nil {
		logger = logger.With("component", "scan_repo")
	}
	return &ScanRepo{DB: db, timeProvider: tp, logger: logger}
}

const scanColumns = `
  id,
  url,
  status,
  created_at,
  started_at,
  completed_at,
  report_reference,
  result_payload,
  last_error
`

// Create inserts a new pending scan for url.
func (r *ScanRepo) Create(ctx context.Context, url string) (*model.ScanJob, error) {
	now := r.timeProvider.Now().UTC()

	var job *model.ScanJob
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO scans (url, status, created_at)
			VALUES ($1, $2, $3)
			RETURNING `+scanColumns, url, model.ScanStatusPending, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectScanFromRows(rows)
		return err
	})
	if err != nil {
		return nil, wrapStoreErr("insert scan", err)
	}
	return job, nil
}

// GetByID retrieves a scan by its id.
func (r *ScanRepo) GetByID(ctx context.Context, id int64) (*model.ScanJob, error) {
	var job *model.ScanJob
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectScanFromRows(rows)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrScanNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("get scan", err)
	}
	return job, nil
}

// Transition applies t to scan id in a single guarded UPDATE. The row only
// changes if its current status is t's predecessor.
func (r *ScanRepo) Transition(ctx context.Context, id int64, t model.ScanTransition) (*model.ScanJob, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	from, ok := t.To.Predecessor()
	if !ok {
		return nil, fmt.Errorf("%w: no predecessor for %q", model.ErrInvalidTransition, t.To)
	}

	query, args := buildTransitionQuery(id, from, t)

	var job *model.ScanJob
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectScanFromRows(rows)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainNoTransition(ctx, id, from, t.To)
	}
	if err != nil {
		return nil, wrapStoreErr("transition scan", err)
	}
	return job, nil
}

func buildTransitionQuery(id int64, from model.ScanStatus, t model.ScanTransition) (string, []any) {
	at := t.At.UTC()
	switch t.To {
	case model.ScanStatusProcessing:
		return `
			UPDATE scans
			SET status = $3, started_at = $4
			WHERE id = $1 AND status = $2
			RETURNING ` + scanColumns, []any{id, from, t.To, at}
	case model.ScanStatusCompleted:
		return `
			UPDATE scans
			SET status = $3,
			    completed_at = $4,
			    report_reference = $5,
			    result_payload = $6::jsonb,
			    last_error = NULL
			WHERE id = $1 AND status = $2
			RETURNING ` + scanColumns, []any{id, from, t.To, at, t.ReportRef, string(t.ResultPayload)}
	default:
		return `
			UPDATE scans
			SET status = $3,
			    completed_at = $4,
			    last_error = NULLIF($5, '')
			WHERE id = $1 AND status = $2
			RETURNING ` + scanColumns, []any{id, from, t.To, at, t.Error}
	}
}

// explainNoTransition distinguishes a missing row from a status mismatch.
func (r *ScanRepo) explainNoTransition(ctx context.Context, id int64, from, to model.ScanStatus) error {
	var current model.ScanStatus
	err := r.DB.QueryRowContext(ctx, `SELECT status FROM scans WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrScanNotFound
	}
	if err != nil {
		return wrapStoreErr("check scan status", err)
	}
	return fmt.Errorf("%w: scan %d is %s, want %s before %s", model.ErrInvalidTransition, id, current, from, to)
}

func collectScanFromRows(rows pgx.Rows) (*model.ScanJob, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanScanFromRow(rows)
	if err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return job, nil
}

type scanRowScanner interface {
	Scan(dest ...any) error
}

func scanScanFromRow(scanner scanRowScanner) (*model.ScanJob, error) {
	job := &model.ScanJob{}
	var (
		status                 string
		startedAt, completedAt sql.NullTime
		reportRef, lastError   sql.NullString
		payload                []byte
	)
	if err := scanner.Scan(
		&job.ID,
		&job.URL,
		&status,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
		&reportRef,
		&payload,
		&lastError,
	); err != nil {
		return nil, err
	}

	job.Status = model.ScanStatus(status)
	job.CreatedAt = job.CreatedAt.UTC()
	job.StartedAt = cloneNullableTime(startedAt)
	job.CompletedAt = cloneNullableTime(completedAt)
	job.ReportRef = cloneNullableString(reportRef)
	job.LastError = cloneNullableString(lastError)
	if len(payload) > 0 {
		job.ResultPayload = append([]byte(nil), payload...)
	}
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
