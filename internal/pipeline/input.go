package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"fs1diag/internal"
)

// ErrNoHeader is returned when an input has no header row.
var ErrNoHeader = errors.New("input has no header row")

// ReadCSV reads a header row followed by data rows. Line numbers are 1-based
// physical lines with the header on line 1; a quoted cell spanning lines
// keeps the number of the line the row starts on.
func ReadCSV(r io.Reader, origin internal.RecordOrigin) ([]internal.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var headers []string
	out := []internal.RawRecord{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if headers == nil {
			if blankRow(row) {
				continue
			}
			headers = row
			continue
		}
		if blankRow(row) {
			continue
		}
		out = append(out, NewRawRecord(origin, line, headers, cellsOf(row)))
	}
	if headers == nil {
		return nil, ErrNoHeader
	}
	return out, nil
}

// ReadXLSX reads the first sheet whose header row names an h_number column,
// falling back to the first non-empty sheet. Line numbers are sheet row numbers.
func ReadXLSX(content []byte) ([]internal.RawRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	var fallback [][]string
	for _, sheet := range f.GetSheetList() {
		rows, err := sheetRows(f, sheet, date1904)
		if err != nil || len(rows) == 0 {
			continue
		}
		if fallback == nil {
			fallback = rows
		}
		if hasIdentityHeader(rows) {
			return RecordsFromRows(internal.OriginXLSX, rows)
		}
	}
	if fallback == nil {
		return nil, ErrNoHeader
	}
	return RecordsFromRows(internal.OriginXLSX, fallback)
}

// sheetRows returns display values, except that date-typed created_time
// cells are rebuilt from their serial so the year keeps four digits whatever
// the cell's number format.
func sheetRows(f *excelize.File, sheet string, date1904 bool) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil || len(rows) == 0 {
		return rows, err
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	headerIdx, col := -1, -1
	for i, row := range rows {
		if blankRow(row) {
			continue
		}
		headerIdx = i
		for j, h := range row {
			if ColumnFor(h) == internal.ColCreatedTime {
				col = j
				break
			}
		}
		break
	}
	if col < 0 {
		return rows, nil
	}

	for i := headerIdx + 1; i < len(rows) && i < len(raw); i++ {
		if col >= len(rows[i]) || col >= len(raw[i]) || rows[i][col] == raw[i][col] {
			continue
		}
		serial, err := strconv.ParseFloat(raw[i][col], 64)
		if err != nil {
			continue
		}
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			continue
		}
		rows[i][col] = t.Round(time.Second).Format(CanonicalTimeLayout)
	}
	return rows, nil
}

// RecordsFromRows turns a grid whose first non-empty row is the header into
// records. Row i of the grid is line i+1.
func RecordsFromRows(origin internal.RecordOrigin, rows [][]string) ([]internal.RawRecord, error) {
	headerIdx := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrNoHeader
	}
	headers := rows[headerIdx]

	out := []internal.RawRecord{}
	for i := headerIdx + 1; i < len(rows); i++ {
		if blankRow(rows[i]) {
			continue
		}
		out = append(out, NewRawRecord(origin, i+1, headers, cellsOf(rows[i])))
	}
	return out, nil
}

// RecordsFromValues adapts the loosely typed grid returned by the Sheets API.
func RecordsFromValues(values [][]interface{}) ([]internal.RawRecord, error) {
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			if cell == nil {
				continue
			}
			rows[i][j] = fmt.Sprint(cell)
		}
	}
	return RecordsFromRows(internal.OriginSheets, rows)
}

// Empty cells become absent values; exports cannot tell null from "".
func cellsOf(row []string) []*string {
	out := make([]*string, len(row))
	for i, v := range row {
		if v == "" {
			continue
		}
		value := v
		out[i] = &value
	}
	return out
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func hasIdentityHeader(rows [][]string) bool {
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		for _, h := range row {
			if ColumnFor(h) == internal.ColHNumber {
				return true
			}
		}
		return false
	}
	return false
}
