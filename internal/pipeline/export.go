package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"fs1diag/internal"
	"fs1diag/internal/storage"
)

var caseHeaders = []string{
	internal.ColHNumber, internal.ColCreatedTime, internal.ColEntryType, internal.ColTechnician,
	internal.ColSource, internal.ColYear, internal.ColMake, internal.ColModel, internal.ColEngineSize,
	internal.ColHDWNumber, internal.ColPartNumber, internal.ColNotes, internal.ColOriginalProblems,
	internal.ColOriginalDTCs, internal.ColFS1ECUProblems, internal.ColFS1DTCs,
	internal.ColFS1OriginalProblemsRelated, internal.ColAdditionalNotes, internal.ColResolution,
}

var reviewHeaders = []string{"run_id", "line", "h_number", "created_time", "reason", "detail", "queued_at"}

// ExportCasesToXLSX writes the case table in column order; absent values are
// left as empty cells and DTC lists use the stored comma form.
func ExportCasesToXLSX(cases []internal.DiagnosticCase, outputPath string) error {
	rows := make([][]any, 0, len(cases))
	for _, c := range cases {
		rows = append(rows, []any{
			c.HNumber, c.CreatedTime, deref(c.EntryType), deref(c.Technician),
			deref(c.Source), deref(c.Year), deref(c.Make), deref(c.Model), deref(c.EngineSize),
			deref(c.HDWNumber), deref(c.PartNumber), deref(c.Notes), c.OriginalProblems,
			storage.EncodeCodes(c.OriginalDTCs), c.FS1ECUProblems, storage.EncodeCodes(c.FS1DTCs),
			c.FS1OriginalProblemsRelated, c.AdditionalNotes, c.Resolution,
		})
	}
	return writeSheet("cases", caseHeaders, rows, outputPath)
}

func ExportReviewToXLSX(review []internal.ReviewRow, outputPath string) error {
	rows := make([][]any, 0, len(review))
	for _, r := range review {
		rows = append(rows, []any{r.RunID, r.LineNo, r.HNumber, r.CreatedTime, r.Reason, r.Detail, r.CreatedAt})
	}
	return writeSheet("review", reviewHeaders, rows, outputPath)
}

func writeSheet(name string, headers []string, rows [][]any, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(name, cell, h)
	}
	for i, row := range rows {
		for j, value := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(name, cell, value)
		}
	}
	if err := f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func deref(v *string) any {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return *v
}
