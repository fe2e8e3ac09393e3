package pipeline

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fs1diag/internal"
)

func mkXLSX(sheets map[string][][]any, order ...string) []byte {
	f := excelize.NewFile()
	for i, name := range order {
		if i == 0 {
			_ = f.SetSheetName(f.GetSheetName(0), name)
		} else {
			_, _ = f.NewSheet(name)
		}
		for r, row := range sheets[name] {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				_ = f.SetCellValue(name, cell, v)
			}
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestReadCSV(t *testing.T) {
	input := "H Number,Created Time,Make,Problem Description,Engine\n" +
		"h-1001,3/4/2023 10:00,toyota,\"Misfire P0301,\nFS1: P0300\",\n" +
		",,,,\n" +
		"H1002,3/5/2023 11:00,,No start,2.4\n"

	records, err := ReadCSV(strings.NewReader(input), internal.OriginCSV)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, 2, first.LineNo)
	assert.Equal(t, internal.OriginCSV, first.Origin)
	assert.Equal(t, "h-1001", *first.Get(internal.ColHNumber))
	assert.Equal(t, "Misfire P0301,\nFS1: P0300", *first.Get(internal.ColProblemDescription))
	assert.Nil(t, first.Get(internal.ColEngineSize))

	second := records[1]
	assert.Equal(t, 5, second.LineNo)
	assert.Nil(t, second.Get(internal.ColMake))
	assert.Equal(t, "2.4", *second.Get(internal.ColEngineSize))
}

func TestReadCSVShortRowLeavesColumnsAbsent(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("h_number,created_time,notes\nH1,2023-01-01\n"), internal.OriginCSV)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Get(internal.ColNotes))
	assert.Nil(t, records[0].Get(internal.ColTechnician))
}

func TestReadCSVRequiresHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("\n\n"), internal.OriginCSV)
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestReadXLSXPicksIdentitySheet(t *testing.T) {
	blob := mkXLSX(map[string][][]any{
		"Summary": {{"Total", 2}},
		"Cases": {
			{"H#", "Added Time", "Year", "Notes"},
			{"H1", "04-Mar-2023 10:00:00", 2016, "<b>ok</b>"},
			{},
			{"H2", "05-Mar-2023 10:00:00", 2019, nil},
		},
	}, "Summary", "Cases")

	records, err := ReadXLSX(blob)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, internal.OriginXLSX, records[0].Origin)
	assert.Equal(t, 2, records[0].LineNo)
	assert.Equal(t, "2016", *records[0].Get(internal.ColYear))
	assert.Equal(t, "04-Mar-2023 10:00:00", *records[0].Get(internal.ColCreatedTime))
	assert.Equal(t, 4, records[1].LineNo)
	assert.Nil(t, records[1].Get(internal.ColNotes))
}

func TestRecordsFromValues(t *testing.T) {
	records, err := RecordsFromValues([][]interface{}{
		{"H Number", "Created Time", "Year"},
		{"H9", "2023-01-01 08:00", float64(2020)},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, internal.OriginSheets, records[0].Origin)
	assert.Equal(t, "2020", *records[0].Get(internal.ColYear))
}

func TestReadXLSXDateTypedCreatedTime(t *testing.T) {
	blob := mkXLSX(map[string][][]any{
		"Cases": {
			{"H Number", "Created Time", "Problem Description"},
			{"H1", time.Date(2023, 3, 4, 10, 15, 0, 0, time.UTC), "Misfire P0301"},
			{"H2", "14/3/2023 08:00", "No start"},
		},
	}, "Cases")

	records, err := ReadXLSX(blob)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2023-03-04 10:15:00", *records[0].Get(internal.ColCreatedTime))
	assert.Equal(t, "14/3/2023 08:00", *records[1].Get(internal.ColCreatedTime))

	got, err := fixedNormalizer().Timestamp(*records[0].Get(internal.ColCreatedTime))
	require.NoError(t, err)
	assert.Equal(t, "2023-03-04 10:15:00", got)
}
