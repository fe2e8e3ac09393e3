package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"fs1diag/internal"
)

const caseColumns = `h_number, created_time, entry_type, technician, source, year, make, model,
  engine_size, hdw_number, part_number, notes, original_problems, original_dtcs,
  fs1_ecu_problems, fs1_dtcs, fs1_original_problems_related, additional_notes, resolution`

// EncodeCodes stores a DTC list as a comma-delimited string. Codes never
// contain commas, so DecodeCodes restores the exact sequence.
func EncodeCodes(codes []string) string {
	return strings.Join(codes, ",")
}

func DecodeCodes(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// UpsertCases writes one batch inside one transaction. Every row is attempted
// so all constraint failures are reported together; any failure rolls the
// whole batch back and is returned as *BatchError. Store-level failures,
// including ctx expiry, are wrapped in ErrStoreUnavailable.
func (d *DB) UpsertCases(ctx context.Context, cases []internal.DiagnosticCase) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO diagnostic_cases (`+caseColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(h_number, created_time) DO UPDATE SET
  entry_type=excluded.entry_type,
  technician=excluded.technician,
  source=excluded.source,
  year=excluded.year,
  make=excluded.make,
  model=excluded.model,
  engine_size=excluded.engine_size,
  hdw_number=excluded.hdw_number,
  part_number=excluded.part_number,
  notes=excluded.notes,
  original_problems=excluded.original_problems,
  original_dtcs=excluded.original_dtcs,
  fs1_ecu_problems=excluded.fs1_ecu_problems,
  fs1_dtcs=excluded.fs1_dtcs,
  fs1_original_problems_related=excluded.fs1_original_problems_related,
  additional_notes=excluded.additional_notes,
  resolution=excluded.resolution
`)
	if err != nil {
		return unavailable(err)
	}
	defer stmt.Close()

	var failures []*ConstraintViolationError
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return unavailable(err)
		}
		related := 0
		if c.FS1OriginalProblemsRelated {
			related = 1
		}
		_, err := stmt.ExecContext(ctx,
			c.HNumber, c.CreatedTime, c.EntryType, c.Technician, c.Source, c.Year, c.Make, c.Model,
			c.EngineSize, c.HDWNumber, c.PartNumber, c.Notes, c.OriginalProblems, EncodeCodes(c.OriginalDTCs),
			c.FS1ECUProblems, EncodeCodes(c.FS1DTCs), related, c.AdditionalNotes, c.Resolution,
		)
		if err == nil {
			continue
		}
		if isConstraint(err) {
			failures = append(failures, &ConstraintViolationError{Key: c.Key(), LineNo: c.LineNo, Err: err})
			continue
		}
		return unavailable(err)
	}

	if len(failures) > 0 {
		return &BatchError{Failures: failures}
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (d *DB) GetCase(key internal.CaseKey) (*internal.DiagnosticCase, error) {
	row := d.conn.QueryRow(`SELECT `+caseColumns+` FROM diagnostic_cases WHERE h_number = ? AND created_time = ?`, key.HNumber, key.CreatedTime)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCases returns every stored case ordered by creation time then case number.
func (d *DB) ListCases() ([]internal.DiagnosticCase, error) {
	rows, err := d.conn.Query(`SELECT ` + caseColumns + ` FROM diagnostic_cases ORDER BY created_time ASC, h_number ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DiagnosticCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) CountCases() (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM diagnostic_cases`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (internal.DiagnosticCase, error) {
	var c internal.DiagnosticCase
	var originalDTCs, fs1DTCs string
	var related int
	err := row.Scan(
		&c.HNumber, &c.CreatedTime, &c.EntryType, &c.Technician, &c.Source, &c.Year, &c.Make, &c.Model,
		&c.EngineSize, &c.HDWNumber, &c.PartNumber, &c.Notes, &c.OriginalProblems, &originalDTCs,
		&c.FS1ECUProblems, &fs1DTCs, &related, &c.AdditionalNotes, &c.Resolution,
	)
	if err != nil {
		return internal.DiagnosticCase{}, err
	}
	c.OriginalDTCs = DecodeCodes(originalDTCs)
	c.FS1DTCs = DecodeCodes(fs1DTCs)
	c.FS1OriginalProblemsRelated = related == 1
	return c, nil
}
