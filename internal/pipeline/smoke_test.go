package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fs1diag/internal"
)

func TestSmokeCSVToXLSX(t *testing.T) {
	ing, db := newTestIngestor(t)
	tmp := t.TempDir()

	input := filepath.Join(tmp, "export.csv")
	body := misfireCSV + "H1003,14/3/2023 08:15,honda,civic,\"<p>Check engine</p> P0420. ECU: P0420 stored\"\n"
	require.NoError(t, os.WriteFile(input, []byte(body), 0o644))

	report, err := ing.ImportFile(context.Background(), "", input)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RowsLoaded)

	cases, err := db.ListCases()
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.True(t, cases[1].FS1OriginalProblemsRelated)

	out := filepath.Join(tmp, "out", "cases.xlsx")
	require.NoError(t, ExportCasesToXLSX(cases, out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("cases")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "h_number", rows[0][0])
	assert.Equal(t, "H1001", rows[1][0])
	assert.Equal(t, "P0301,P0302", rows[1][13])
	assert.Equal(t, "2023-03-14 08:15:00", rows[2][1])

	review, err := db.ListReview(10)
	require.NoError(t, err)
	reviewOut := filepath.Join(tmp, "out", "review.xlsx")
	require.NoError(t, ExportReviewToXLSX(review, reviewOut))
	_, err = os.Stat(reviewOut)
	require.NoError(t, err)
}

func TestReadInputRejectsUnknownType(t *testing.T) {
	_, _, err := ReadInput("", "export.pdf")
	assert.Error(t, err)
}

func TestReadInputEML(t *testing.T) {
	dir := t.TempDir()
	zoho := filepath.Join(dir, "entry.eml")
	lunch := filepath.Join(dir, "lunch.eml")
	require.NoError(t, os.WriteFile(zoho, []byte(zohoTableMail), 0o644))
	require.NoError(t, os.WriteFile(lunch, []byte("From: bob@example.com\nSubject: Lunch\n\nsee you at noon\n"), 0o644))

	origin, records, err := ReadInput("", zoho)
	require.NoError(t, err)
	assert.Equal(t, internal.OriginZohoMail, origin)
	require.Len(t, records, 1)

	_, records, err = ReadInput("eml", lunch)
	assert.ErrorContains(t, err, "not a form notification")
	assert.Empty(t, records)
}
