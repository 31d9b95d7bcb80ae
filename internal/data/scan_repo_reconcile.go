package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/target/a11y-scanner/internal/core"
	"github.com/target/a11y-scanner/internal/data/pgxutil"
)

// Advisory lock namespace for reconciler sweeps, used with the two-arg
// pg_try_advisory_xact_lock(major, minor).
const (
	advisoryLockReconcileMajor          int32 = 2000
	advisoryLockReconcileFailProcessing int32 = 1
)

// DefaultStaleProcessingReason is recorded on scans failed by the reconciler.
const DefaultStaleProcessingReason = "scan exceeded processing deadline"

// FailStaleProcessing marks scans processing for longer than params.MaxAge as
// failed. At most params.BatchSize rows are touched per call. When another
// reconciler holds the sweep lock the call is a no-op.
func (r *ScanRepo) FailStaleProcessing(ctx context.Context, params core.FailStaleParams) (int64, error) {
	if params.MaxAge <= 0 {
		return 0, errors.New("max age must be greater than zero")
	}
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	reason := params.Reason
	if reason == "" {
		reason = DefaultStaleProcessingReason
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := pgxutil.TryAdvisoryXactLock(ctx, tx, advisoryLockReconcileMajor, advisoryLockReconcileFailProcessing)
			if err != nil {
				return err
			}
			if !locked {
				return nil
			}

			now := r.timeProvider.Now().UTC()
			cutoff := now.Add(-params.MaxAge)

			res, err := tx.ExecContext(ctx, `
				UPDATE scans
				SET status = 'failed',
				    completed_at = $1,
				    last_error = $2
				WHERE id IN (
					SELECT id FROM scans
					WHERE status = 'processing'
					  AND started_at < $3
					ORDER BY started_at
					LIMIT $4
					FOR UPDATE SKIP LOCKED
				)
				AND status = 'processing'
			`, now, reason, cutoff, params.BatchSize)
			if err != nil {
				return fmt.Errorf("fail stale processing scans: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, wrapStoreErr("reconcile processing scans", err)
	}
	return rowsAffected, nil
}

// ListOrphanedPending returns the ids of scans still pending after maxAge,
// oldest first.
func (r *ScanRepo) ListOrphanedPending(ctx context.Context, maxAge time.Duration, limit int) ([]int64, error) {
	if maxAge <= 0 {
		return nil, errors.New("max age must be greater than zero")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be greater than zero")
	}

	cutoff := r.timeProvider.Now().UTC().Add(-maxAge)
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id FROM scans
		WHERE status = 'pending' AND created_at < $1
		ORDER BY id
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, wrapStoreErr("list orphaned scans", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapStoreErr("scan orphaned id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("iterate orphaned scans", err)
	}
	return ids, nil
}
