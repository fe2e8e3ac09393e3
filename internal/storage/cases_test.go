package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fs1diag/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "fs1.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strp(v string) *string { return &v }

func sampleCase(hNumber, created string) internal.DiagnosticCase {
	return internal.DiagnosticCase{
		HNumber:                    hNumber,
		CreatedTime:                created,
		EntryType:                  strp("FS1"),
		Technician:                 strp("J. Ortiz"),
		Year:                       strp("2014"),
		Make:                       strp("Toyota"),
		Model:                      strp("Camry"),
		Notes:                      strp("Engine misfire P0301"),
		OriginalProblems:           "Engine misfire",
		OriginalDTCs:               []string{"P0301", "P0302"},
		FS1ECUProblems:             "check found",
		FS1DTCs:                    []string{"P0300"},
		FS1OriginalProblemsRelated: false,
		Resolution:                 "replaced coil.",
	}
}

func TestCodesRoundTrip(t *testing.T) {
	codes := []string{"P0301", "B1234", "U0100"}
	assert.Equal(t, codes, DecodeCodes(EncodeCodes(codes)))
	assert.Equal(t, []string{}, DecodeCodes(EncodeCodes(nil)))
}

func TestUpsertCasesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	c := sampleCase("H1001", "2023-03-14 09:30:00")

	require.NoError(t, db.UpsertCases(context.Background(), []internal.DiagnosticCase{c}))

	got, err := db.GetCase(c.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.OriginalDTCs, got.OriginalDTCs)
	assert.Equal(t, c.FS1DTCs, got.FS1DTCs)
	assert.Equal(t, "replaced coil.", got.Resolution)
	assert.Nil(t, got.Source)
	assert.Nil(t, got.EngineSize)
	assert.Equal(t, "Toyota", *got.Make)

	missing, err := db.GetCase(internal.CaseKey{HNumber: "H0", CreatedTime: "2020-01-01 00:00:00"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertCasesIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	batch := []internal.DiagnosticCase{
		sampleCase("H1001", "2023-03-14 09:30:00"),
		sampleCase("H1002", "2023-03-15 10:00:00"),
	}

	require.NoError(t, db.UpsertCases(context.Background(), batch))
	first, err := db.ListCases()
	require.NoError(t, err)

	require.NoError(t, db.UpsertCases(context.Background(), batch))
	second, err := db.ListCases()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
}

func TestUpsertCasesReplacesByKey(t *testing.T) {
	db := openTestDB(t)
	c := sampleCase("H1001", "2023-03-14 09:30:00")
	require.NoError(t, db.UpsertCases(context.Background(), []internal.DiagnosticCase{c}))

	c.Resolution = "replaced injector"
	c.FS1DTCs = nil
	require.NoError(t, db.UpsertCases(context.Background(), []internal.DiagnosticCase{c}))

	n, err := db.CountCases()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := db.GetCase(c.Key())
	require.NoError(t, err)
	assert.Equal(t, "replaced injector", got.Resolution)
	assert.Empty(t, got.FS1DTCs)
}

func TestUpsertCasesRollsBackWholeBatchOnConstraintViolation(t *testing.T) {
	db := openTestDB(t)

	good := sampleCase("H2001", "2023-05-01 08:00:00")
	badCode := sampleCase("H2002", "2023-05-01 09:00:00")
	badCode.OriginalDTCs = []string{"p0301"}
	badCode.LineNo = 3
	badMarkup := sampleCase("H2003", "2023-05-01 10:00:00")
	badMarkup.Notes = strp("<b>misfire</b>")
	badMarkup.LineNo = 4

	err := db.UpsertCases(context.Background(), []internal.DiagnosticCase{good, badCode, badMarkup})
	require.Error(t, err)

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	require.Len(t, batchErr.Failures, 2)
	assert.Equal(t, badCode.Key(), batchErr.Failures[0].Key)
	assert.Equal(t, 3, batchErr.Failures[0].LineNo)
	assert.Equal(t, badMarkup.Key(), batchErr.Failures[1].Key)
	assert.False(t, errors.Is(err, ErrStoreUnavailable))

	n, err := db.CountCases()
	require.NoError(t, err)
	assert.Zero(t, n, "no partial commit")
}

func TestUpsertCasesBlankIdentityViolates(t *testing.T) {
	db := openTestDB(t)
	err := db.UpsertCases(context.Background(), []internal.DiagnosticCase{sampleCase("", "2023-05-01 08:00:00")})

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Len(t, batchErr.Failures, 1)
}

func TestUpsertCasesExpiredContextIsUnavailable(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.UpsertCases(ctx, []internal.DiagnosticCase{sampleCase("H3001", "2023-05-01 08:00:00")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))

	n, err := db.CountCases()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	v, err := db.GetMetadata("sheets.last_import")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.SetMetadata("sheets.last_import", "2024-01-01T00:00:00Z"))
	require.NoError(t, db.SetMetadata("sheets.last_import", "2024-02-01T00:00:00Z"))
	v, err = db.GetMetadata("sheets.last_import")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "2024-02-01T00:00:00Z", *v)
}
