package internal

type RecordOrigin string

const (
	OriginCSV       RecordOrigin = "csv"
	OriginXLSX      RecordOrigin = "xlsx"
	OriginSheets    RecordOrigin = "sheets"
	OriginZohoMail  RecordOrigin = "zoho_mail"
	OriginUnlabeled RecordOrigin = "unlabeled"
)

// Column names of the diagnostic_cases table and of canonical input headers.
const (
	ColHNumber                    = "h_number"
	ColCreatedTime                = "created_time"
	ColEntryType                  = "entry_type"
	ColTechnician                 = "technician"
	ColSource                     = "source"
	ColYear                       = "year"
	ColMake                       = "make"
	ColModel                      = "model"
	ColEngineSize                 = "engine_size"
	ColHDWNumber                  = "hdw_number"
	ColPartNumber                 = "part_number"
	ColNotes                      = "notes"
	ColProblemDescription         = "problem_description"
	ColOriginalProblems           = "original_problems"
	ColOriginalDTCs               = "original_dtcs"
	ColFS1ECUProblems             = "fs1_ecu_problems"
	ColFS1DTCs                    = "fs1_dtcs"
	ColFS1OriginalProblemsRelated = "fs1_original_problems_related"
	ColAdditionalNotes            = "additional_notes"
	ColResolution                 = "resolution"
)

// RawRecord is one input row as read from a source. A nil value means the
// cell was null or the column was not present at all.
type RawRecord struct {
	LineNo int
	Origin RecordOrigin
	Fields map[string]*string
}

// Get returns the raw value of a column; nil when the column is absent.
func (r RawRecord) Get(column string) *string {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[column]
}

type CaseKey struct {
	HNumber     string `json:"h_number"`
	CreatedTime string `json:"created_time"`
}

func (k CaseKey) String() string {
	return k.HNumber + "@" + k.CreatedTime
}

// ParsedRecord is the typed form of a RawRecord. Every declared column is a
// field; absent values stay nil.
type ParsedRecord struct {
	LineNo int
	Origin RecordOrigin

	HNumber     string
	CreatedTime string

	EntryType          *string
	Technician         *string
	Source             *string
	Year               *string
	Make               *string
	Model              *string
	EngineSize         *string
	HDWNumber          *string
	PartNumber         *string
	Notes              *string
	ProblemDescription *string

	OriginalProblems *string
	OriginalDTCs     *string
	FS1ECUProblems   *string
	FS1DTCs          *string
	AdditionalNotes  *string
	Resolution       *string
}

type DiagnosticCase struct {
	HNumber     string
	CreatedTime string

	EntryType  *string
	Technician *string
	Source     *string
	Year       *string
	Make       *string
	Model      *string
	EngineSize *string
	HDWNumber  *string
	PartNumber *string
	Notes      *string

	OriginalProblems           string
	OriginalDTCs               []string
	FS1ECUProblems             string
	FS1DTCs                    []string
	FS1OriginalProblemsRelated bool
	AdditionalNotes            string
	Resolution                 string

	// LineNo is the input line the case was built from; not persisted.
	LineNo int
}

func (c DiagnosticCase) Key() CaseKey {
	return CaseKey{HNumber: c.HNumber, CreatedTime: c.CreatedTime}
}

type ReviewReason string

const (
	ReviewLowConfidence  ReviewReason = "low_confidence_extraction"
	ReviewMalformedCode  ReviewReason = "malformed_code_token"
	ReviewEmptySegment   ReviewReason = "empty_marker_segment"
	ReviewRepeatedMarker ReviewReason = "repeated_marker"
	ReviewYearOutOfRange ReviewReason = "year_out_of_range"
)

// ReviewFlag is a non-fatal observation queued for manual review.
type ReviewFlag struct {
	LineNo int          `json:"line"`
	Key    CaseKey      `json:"key"`
	Reason ReviewReason `json:"reason"`
	Detail string       `json:"detail,omitempty"`
}

type Rejection struct {
	LineNo      int    `json:"line"`
	HNumber     string `json:"h_number,omitempty"`
	CreatedTime string `json:"created_time,omitempty"`
	Reason      string `json:"reason"`
	Detail      string `json:"detail"`
}

type LoadFailure struct {
	Batch  int     `json:"batch"`
	Key    CaseKey `json:"key"`
	LineNo int     `json:"line"`
	Reason string  `json:"reason"`
}

// RunReport summarises one ingestion run.
type RunReport struct {
	RunID                string        `json:"run_id"`
	Origin               RecordOrigin  `json:"origin"`
	RowsRead             int           `json:"rows_read"`
	RowsAccepted         int           `json:"rows_accepted"`
	RowsRejected         []Rejection   `json:"rows_rejected"`
	DuplicatesCollapsed  int           `json:"duplicates_collapsed"`
	LowConfidenceFlagged int           `json:"low_confidence_flagged"`
	ReviewFlags          []ReviewFlag  `json:"review_flags"`
	RowsLoaded           int           `json:"rows_loaded"`
	BatchesRolledBack    int           `json:"batches_rolled_back"`
	LoadFailures         []LoadFailure `json:"load_failures"`
	StoreUnavailable     bool          `json:"store_unavailable"`
	Cancelled            bool          `json:"cancelled"`
}

// Clean reports whether the run finished without rejections or rollbacks.
func (r RunReport) Clean() bool {
	return len(r.RowsRejected) == 0 && r.BatchesRolledBack == 0 && !r.StoreUnavailable && !r.Cancelled
}

type MailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type RunRow struct {
	ID         string
	Origin     string
	StartedAt  string
	FinishedAt string
	ReportJSON string
}

type ReviewRow struct {
	ID          int
	RunID       string
	LineNo      int
	HNumber     string
	CreatedTime string
	Reason      string
	Detail      string
	CreatedAt   string
}
