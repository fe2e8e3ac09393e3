package storage

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fs1diag/internal"
)

// ErrStoreUnavailable marks failures of the store itself (timeouts, lost
// connection, commit failure). The whole batch was rolled back and the caller
// should retry later.
var ErrStoreUnavailable = errors.New("store unavailable")

// ConstraintViolationError is one row rejected by a table constraint.
type ConstraintViolationError struct {
	Key    internal.CaseKey
	LineNo int
	Err    error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation for %s (line %d): %v", e.Key, e.LineNo, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error {
	return e.Err
}

// BatchError lists every row of a rolled-back batch that violated a
// constraint. No row of the batch was committed.
type BatchError struct {
	Failures []*ConstraintViolationError
}

func (e *BatchError) Error() string {
	keys := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		keys = append(keys, f.Key.String())
	}
	return fmt.Sprintf("batch rolled back: %d row(s) violated constraints: %s", len(e.Failures), strings.Join(keys, ", "))
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
