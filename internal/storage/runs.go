package storage

import (
	"encoding/json"
	"fmt"

	"fs1diag/internal"
)

// InsertRun persists a finished run with its rejections and review flags.
func (d *DB) InsertRun(report internal.RunReport, startedAt, finishedAt string) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO ingest_runs (id, origin, startedAt, finishedAt, reportJson) VALUES (?, ?, ?, ?, ?)`,
		report.RunID, string(report.Origin), startedAt, finishedAt, string(reportJSON)); err != nil {
		return err
	}

	for _, r := range report.RowsRejected {
		if _, err := tx.Exec(`
INSERT INTO ingest_rejections (runId, lineNo, h_number, created_time, reason, detail)
VALUES (?, ?, ?, ?, ?, ?)
`, report.RunID, r.LineNo, nullIfEmpty(r.HNumber), nullIfEmpty(r.CreatedTime), r.Reason, r.Detail); err != nil {
			return err
		}
	}

	for _, f := range report.ReviewFlags {
		if _, err := tx.Exec(`
INSERT INTO review_queue (runId, lineNo, h_number, created_time, reason, detail)
VALUES (?, ?, ?, ?, ?, ?)
`, report.RunID, f.LineNo, f.Key.HNumber, f.Key.CreatedTime, string(f.Reason), f.Detail); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	rows, err := d.conn.Query(`
SELECT id, origin, startedAt, finishedAt, reportJson
FROM ingest_runs ORDER BY startedAt DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var row internal.RunRow
		if err := rows.Scan(&row.ID, &row.Origin, &row.StartedAt, &row.FinishedAt, &row.ReportJSON); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) ListRejections(runID string) ([]internal.Rejection, error) {
	rows, err := d.conn.Query(`
SELECT lineNo, COALESCE(h_number, ''), COALESCE(created_time, ''), reason, detail
FROM ingest_rejections WHERE runId = ? ORDER BY lineNo ASC
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Rejection
	for rows.Next() {
		var r internal.Rejection
		if err := rows.Scan(&r.LineNo, &r.HNumber, &r.CreatedTime, &r.Reason, &r.Detail); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListReview returns queued review entries, newest first.
func (d *DB) ListReview(limit int) ([]internal.ReviewRow, error) {
	rows, err := d.conn.Query(`
SELECT id, runId, lineNo, h_number, created_time, reason, detail, createdAt
FROM review_queue ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReviewRow
	for rows.Next() {
		var r internal.ReviewRow
		if err := rows.Scan(&r.ID, &r.RunID, &r.LineNo, &r.HNumber, &r.CreatedTime, &r.Reason, &r.Detail, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
