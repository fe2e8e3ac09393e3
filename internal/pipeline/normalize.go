package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"fs1diag/internal"
	"fs1diag/internal/util"
)

// CanonicalTimeLayout is the stored form of created_time.
const CanonicalTimeLayout = "2006-01-02 15:04:05"

var (
	reValidCode = regexp.MustCompile(`^[A-Z]\d{4}$`)
	reYear      = regexp.MustCompile(`^\d{4}$`)
)

// Month-first layouts are tried before day-first ones, so "3/4/2023" is read
// as March 4th and "14/3/2023" falls through to the day-first set.
var (
	naiveLayouts = []string{
		"1/2/2006 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 3:04 PM",
		"1/2/2006 3:04:05 PM",
		"1/2/2006",
		"2/1/2006 15:04",
		"2/1/2006 15:04:05",
		"2/1/2006 3:04 PM",
		"2/1/2006 3:04:05 PM",
		"2/1/2006",
		"1/2/06 15:04",
		"1/2/06 15:04:05",
		"1/2/06 3:04 PM",
		"1/2/06",
		"2/1/06 15:04",
		"2/1/06 15:04:05",
		"2/1/06 3:04 PM",
		"2/1/06",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
		"2-Jan-2006 15:04:05",
		"2-Jan-2006 15:04",
		"2-Jan-2006 3:04 PM",
		"2-Jan-2006",
	}
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02T15:04:05Z0700",
	}
)

type Normalizer struct {
	yearMin int
	now     func() time.Time
}

func NewNormalizer(yearMin int) *Normalizer {
	if yearMin <= 0 {
		yearMin = 1980
	}
	return &Normalizer{yearMin: yearMin, now: time.Now}
}

// Timestamp converts a created_time value to CanonicalTimeLayout. Zoned values
// are converted to UTC; naive values are kept as written.
func (n *Normalizer) Timestamp(value string) (string, error) {
	v := strings.ToUpper(util.NormalizeSpaces(value))
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().Format(CanonicalTimeLayout), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(CanonicalTimeLayout), nil
		}
	}
	return "", &UnparseableTimestampError{Value: value}
}

// CheckYear reports whether a model year is four digits within
// [yearMin, current year + 1].
func (n *Normalizer) CheckYear(value string) bool {
	v := strings.TrimSpace(value)
	if !reYear.MatchString(v) {
		return false
	}
	year, err := strconv.Atoi(v)
	if err != nil {
		return false
	}
	return year >= n.yearMin && year <= n.now().Year()+1
}

// NormalizeCodes upper-cases codes, drops anything that is not a letter and
// four digits, and removes repeats keeping first occurrence.
func NormalizeCodes(codes []string) (valid []string, dropped []string) {
	valid = []string{}
	seen := map[string]struct{}{}
	for _, c := range codes {
		code := strings.ToUpper(strings.TrimSpace(c))
		if !reValidCode.MatchString(code) {
			if code != "" {
				dropped = append(dropped, c)
			}
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		valid = append(valid, code)
	}
	return valid, dropped
}

// Normalize builds the canonical case from a parsed record and the extraction
// of its free text. Explicit structured columns on the record take precedence
// over extracted values. Returned flags are fully keyed.
func (n *Normalizer) Normalize(rec internal.ParsedRecord, ext Extraction) (internal.DiagnosticCase, []internal.ReviewFlag, error) {
	hNumber := util.NormalizeCaseNumber(rec.HNumber)
	if hNumber == "" {
		return internal.DiagnosticCase{}, nil, &MalformedRowError{LineNo: rec.LineNo, Column: internal.ColHNumber}
	}
	created, err := n.Timestamp(rec.CreatedTime)
	if err != nil {
		return internal.DiagnosticCase{}, nil, &UnparseableTimestampError{LineNo: rec.LineNo, Value: rec.CreatedTime}
	}

	c := internal.DiagnosticCase{
		HNumber:     hNumber,
		CreatedTime: created,
		EntryType:   rec.EntryType,
		Technician:  rec.Technician,
		Source:      rec.Source,
		Year:        util.TrimPtr(rec.Year),
		Make:        titlePtr(rec.Make),
		Model:       titlePtr(rec.Model),
		EngineSize:  rec.EngineSize,
		HDWNumber:   rec.HDWNumber,
		PartNumber:  rec.PartNumber,
		Notes:       stripPtr(rec.Notes),
		LineNo:      rec.LineNo,

		OriginalProblems: overrideText(rec.OriginalProblems, ext.OriginalProblems),
		FS1ECUProblems:   overrideText(rec.FS1ECUProblems, ext.FS1ECUProblems),
		Resolution:       overrideText(rec.Resolution, ext.Resolution),
		AdditionalNotes:  overrideText(rec.AdditionalNotes, ext.AdditionalNotes),
	}

	var flags []internal.ReviewFlag
	for _, f := range ext.Flags {
		flags = append(flags, internal.ReviewFlag{LineNo: rec.LineNo, Key: c.Key(), Reason: f.Reason, Detail: f.Detail})
	}
	flag := func(reason internal.ReviewReason, detail string) {
		flags = append(flags, internal.ReviewFlag{LineNo: rec.LineNo, Key: c.Key(), Reason: reason, Detail: detail})
	}

	originalCodes := ext.OriginalDTCs
	if !util.IsBlank(rec.OriginalDTCs) {
		originalCodes = SplitCodeList(*rec.OriginalDTCs)
	}
	fs1Codes := ext.FS1DTCs
	if !util.IsBlank(rec.FS1DTCs) {
		fs1Codes = SplitCodeList(*rec.FS1DTCs)
	}

	var dropped []string
	c.OriginalDTCs, dropped = NormalizeCodes(originalCodes)
	if len(dropped) > 0 {
		flag(internal.ReviewMalformedCode, "original_dtcs: "+strings.Join(dropped, ","))
	}
	c.FS1DTCs, dropped = NormalizeCodes(fs1Codes)
	if len(dropped) > 0 {
		flag(internal.ReviewMalformedCode, "fs1_dtcs: "+strings.Join(dropped, ","))
	}
	c.FS1OriginalProblemsRelated = Related(c.OriginalDTCs, c.FS1DTCs)

	if c.Year != nil && *c.Year != "" && !n.CheckYear(*c.Year) {
		flag(internal.ReviewYearOutOfRange, *c.Year)
	}

	return c, flags, nil
}

func titlePtr(v *string) *string {
	if v == nil {
		return nil
	}
	return util.StringPtr(util.TitleCase(*v))
}

func stripPtr(v *string) *string {
	if v == nil {
		return nil
	}
	return util.StringPtr(util.StripMarkup(*v))
}

func overrideText(raw *string, extracted string) string {
	if !util.IsBlank(raw) {
		return util.StripMarkup(*raw)
	}
	return util.StripMarkup(extracted)
}
