package csvimport

import (
	"errors"
	"fmt"
)

// Row error codes reported back to the uploader
const (
	CodeRequired        = "REQUIRED"
	CodeInvalidFormat   = "INVALID_FORMAT"
	CodeInvalidValue    = "INVALID_VALUE"
	CodeTooLong         = "TOO_LONG"
	CodeDuplicateInFile = "DUPLICATE_IN_FILE"
	CodeDuplicateInDB   = "DUPLICATE_IN_DB"
	CodeRejected        = "REJECTED"
)

// File level failures
var (
	ErrEmptyFile       = errors.New("csv file is empty")
	ErrInvalidEncoding = errors.New("csv file is not valid UTF-8")
	ErrMissingHeader   = errors.New("csv file has no header row")
	ErrMissingColumn   = errors.New("csv file is missing a required column")
	ErrTooManyRows     = errors.New("csv file exceeds the row limit")
)

// RowError is a problem with one cell or one row. Line is the 1-based line
// in the file, the header being line 1.
type RowError struct {
	Line    int    `json:"line"`
	Column  string `json:"column,omitempty"`
	Value   string `json:"value,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("line %d, column %s: %s", e.Line, e.Column, e.Message)
}

// ErrorList collects row errors up to a cap
type ErrorList struct {
	max       int
	errors    []RowError
	truncated bool
}

// NewErrorList creates a list holding at most max errors. Zero means unbounded.
func NewErrorList(max int) *ErrorList {
	return &ErrorList{max: max, errors: []RowError{}}
}

// Add records an error, dropping it once the cap is reached
func (l *ErrorList) Add(err RowError) {
	if l.max > 0 && len(l.errors) >= l.max {
		l.truncated = true
		return
	}
	l.errors = append(l.errors, err)
}

// Errors returns the recorded errors in insertion order
func (l *ErrorList) Errors() []RowError {
	return l.errors
}

// Len returns the number of recorded errors
func (l *ErrorList) Len() int {
	return len(l.errors)
}

// Truncated reports whether errors were dropped
func (l *ErrorList) Truncated() bool {
	return l.truncated
}

// Lines returns the set of lines that have at least one error
func (l *ErrorList) Lines() map[int]bool {
	lines := make(map[int]bool, len(l.errors))
	for _, e := range l.errors {
		lines[e.Line] = true
	}
	return lines
}
