package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const runLogColumns = `id, run_id, platform_name, run_start, run_end, status, tenders_found,
	tenders_new, tenders_updated, attachments_downloaded, level2_extracted, errors_count, error_details`

// AppendRunLog inserts a run record and returns its ID. Run logs are never
// modified afterwards.
func (db *DB) AppendRunLog(ctx context.Context, rl *RunLog) (int64, error) {
	query, args, err := db.conn.BindNamed(`INSERT INTO run_logs
		(run_id, platform_name, run_start, run_end, status, tenders_found, tenders_new,
		tenders_updated, attachments_downloaded, level2_extracted, errors_count, error_details)
		VALUES (:run_id, :platform_name, :run_start, :run_end, :status, :tenders_found, :tenders_new,
		:tenders_updated, :attachments_downloaded, :level2_extracted, :errors_count, :error_details)
		RETURNING id`, rl)
	if err != nil {
		return 0, fmt.Errorf("binding run log: %w", err)
	}
	if err := db.conn.GetContext(ctx, &rl.ID, query, args...); err != nil {
		return 0, fmt.Errorf("appending run log: %w", err)
	}
	return rl.ID, nil
}

// RunLogs returns the most recent run logs, newest first. An empty platform
// matches all platforms.
func (db *DB) RunLogs(ctx context.Context, platform string, limit int) ([]RunLog, error) {
	query := `SELECT ` + runLogColumns + ` FROM run_logs`
	var args []any
	if platform != "" {
		query += " WHERE platform_name = ?"
		args = append(args, platform)
	}
	query += " ORDER BY run_start DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var logs []RunLog
	if err := db.conn.SelectContext(ctx, &logs, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying run logs: %w", err)
	}
	return logs, nil
}

// LastSuccessfulRun returns the latest successful run of a platform, or nil.
func (db *DB) LastSuccessfulRun(ctx context.Context, platform string) (*RunLog, error) {
	var rl RunLog
	err := db.conn.GetContext(ctx, &rl, db.conn.Rebind(`SELECT `+runLogColumns+`
		FROM run_logs WHERE platform_name = ? AND status = ?
		ORDER BY run_start DESC, id DESC LIMIT 1`), platform, RunSuccess)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading last run for %s: %w", platform, err)
	}
	return &rl, nil
}
