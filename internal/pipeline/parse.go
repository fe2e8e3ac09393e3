package pipeline

import (
	"fs1diag/internal"
	"fs1diag/internal/util"
)

// headerAliases maps canonical header spellings seen in the Zoho Forms and
// Google Sheets exports onto table columns.
var headerAliases = map[string]string{
	"h":                internal.ColHNumber,
	"h_no":             internal.ColHNumber,
	"h_num":            internal.ColHNumber,
	"hnumber":          internal.ColHNumber,
	"case_number":      internal.ColHNumber,
	"case_no":          internal.ColHNumber,
	"created":          internal.ColCreatedTime,
	"created_at":       internal.ColCreatedTime,
	"created_date":     internal.ColCreatedTime,
	"timestamp":        internal.ColCreatedTime,
	"added_time":       internal.ColCreatedTime,
	"submitted_time":   internal.ColCreatedTime,
	"type":             internal.ColEntryType,
	"entry":            internal.ColEntryType,
	"tech":             internal.ColTechnician,
	"technician_name":  internal.ColTechnician,
	"vehicle_year":     internal.ColYear,
	"vehicle_make":     internal.ColMake,
	"vehicle_model":    internal.ColModel,
	"engine":           internal.ColEngineSize,
	"engine_size_l":    internal.ColEngineSize,
	"hdw":              internal.ColHDWNumber,
	"hdw_no":           internal.ColHDWNumber,
	"hardware_number":  internal.ColHDWNumber,
	"part":             internal.ColPartNumber,
	"part_no":          internal.ColPartNumber,
	"note":             internal.ColNotes,
	"comments":         internal.ColNotes,
	"description":      internal.ColProblemDescription,
	"problem":          internal.ColProblemDescription,
	"problems":         internal.ColProblemDescription,
	"dtcs":             internal.ColOriginalDTCs,
	"original_codes":   internal.ColOriginalDTCs,
	"fs1_codes":        internal.ColFS1DTCs,
	"fs1_problems":     internal.ColFS1ECUProblems,
	"fs1_ecu_problem":  internal.ColFS1ECUProblems,
	"fix":              internal.ColResolution,
	"fixed_by":         internal.ColResolution,
	"additional_note":  internal.ColAdditionalNotes,
	"related":          internal.ColFS1OriginalProblemsRelated,
	"problems_related": internal.ColFS1OriginalProblemsRelated,
	"fs1_related":      internal.ColFS1OriginalProblemsRelated,
	"original_problem": internal.ColOriginalProblems,
	"original_dtc":     internal.ColOriginalDTCs,
	"fs1_dtc":          internal.ColFS1DTCs,
}

// ColumnFor resolves an input header to a known column name. Unknown headers
// are returned in canonical form and ignored by the parser.
func ColumnFor(header string) string {
	canonical := util.CanonicalHeader(header)
	if alias, ok := headerAliases[canonical]; ok {
		return alias
	}
	return canonical
}

// ParseRecord turns a raw row into a typed record. It fails with
// *MalformedRowError when h_number or created_time is absent or blank.
func ParseRecord(raw internal.RawRecord) (internal.ParsedRecord, error) {
	hNumber := raw.Get(internal.ColHNumber)
	if util.IsBlank(hNumber) {
		return internal.ParsedRecord{}, &MalformedRowError{LineNo: raw.LineNo, Column: internal.ColHNumber}
	}
	createdTime := raw.Get(internal.ColCreatedTime)
	if util.IsBlank(createdTime) {
		return internal.ParsedRecord{}, &MalformedRowError{LineNo: raw.LineNo, Column: internal.ColCreatedTime}
	}

	origin := raw.Origin
	if origin == "" {
		origin = internal.OriginUnlabeled
	}

	return internal.ParsedRecord{
		LineNo:      raw.LineNo,
		Origin:      origin,
		HNumber:     *hNumber,
		CreatedTime: *createdTime,

		EntryType:          raw.Get(internal.ColEntryType),
		Technician:         raw.Get(internal.ColTechnician),
		Source:             raw.Get(internal.ColSource),
		Year:               raw.Get(internal.ColYear),
		Make:               raw.Get(internal.ColMake),
		Model:              raw.Get(internal.ColModel),
		EngineSize:         raw.Get(internal.ColEngineSize),
		HDWNumber:          raw.Get(internal.ColHDWNumber),
		PartNumber:         raw.Get(internal.ColPartNumber),
		Notes:              raw.Get(internal.ColNotes),
		ProblemDescription: raw.Get(internal.ColProblemDescription),

		OriginalProblems: raw.Get(internal.ColOriginalProblems),
		OriginalDTCs:     raw.Get(internal.ColOriginalDTCs),
		FS1ECUProblems:   raw.Get(internal.ColFS1ECUProblems),
		FS1DTCs:          raw.Get(internal.ColFS1DTCs),
		AdditionalNotes:  raw.Get(internal.ColAdditionalNotes),
		Resolution:       raw.Get(internal.ColResolution),
	}, nil
}

// NewRawRecord builds a RawRecord from a header row and one data row.
// Headers are resolved through ColumnFor; cells beyond the header are dropped
// and missing trailing cells stay absent. The first non-empty occurrence of a
// repeated column wins.
func NewRawRecord(origin internal.RecordOrigin, lineNo int, headers []string, cells []*string) internal.RawRecord {
	fields := make(map[string]*string, len(headers))
	for i, h := range headers {
		column := ColumnFor(h)
		if column == "" {
			continue
		}
		var value *string
		if i < len(cells) {
			value = cells[i]
		}
		if existing, ok := fields[column]; ok && !util.IsBlank(existing) {
			continue
		}
		fields[column] = value
	}
	return internal.RawRecord{LineNo: lineNo, Origin: origin, Fields: fields}
}
