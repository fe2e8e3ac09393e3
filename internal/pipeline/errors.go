package pipeline

import "fmt"

// Rejection reasons written to the run report.
const (
	ReasonMalformedRow         = "malformed_row"
	ReasonUnparseableTimestamp = "unparseable_timestamp"
)

// MalformedRowError rejects a row whose identity column is absent or blank.
type MalformedRowError struct {
	LineNo int
	Column string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("line %d: required column %s is missing or empty", e.LineNo, e.Column)
}

// UnparseableTimestampError rejects a row whose created_time matches none of
// the accepted layouts.
type UnparseableTimestampError struct {
	LineNo int
	Value  string
}

func (e *UnparseableTimestampError) Error() string {
	return fmt.Sprintf("line %d: unparseable timestamp %q", e.LineNo, e.Value)
}
