// Package csvimport reads and validates tabular uploads such as bulk charge
// files.
package csvimport

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

const encodingProbeSize = 4096

// Row is one data line keyed by normalized column name
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns the trimmed value of column, or "" when absent
func (r *Row) Get(column string) string {
	return r.Values[column]
}

// Reader yields rows from a CSV stream with a header line
type Reader struct {
	csv     *csv.Reader
	headers []string
	line    int
}

// ReaderOption configures a Reader
type ReaderOption func(*csv.Reader)

// WithDelimiter sets the field separator
func WithDelimiter(d rune) ReaderOption {
	return func(r *csv.Reader) {
		r.Comma = d
	}
}

// NewReader strips a UTF-8 byte order mark, checks the encoding and reads the
// header line
func NewReader(r io.Reader, opts ...ReaderOption) (*Reader, error) {
	buf := bufio.NewReader(r)

	if bom, err := buf.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	probe, err := buf.Peek(encodingProbeSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(strings.TrimSpace(string(probe))) == 0 {
		return nil, ErrEmptyFile
	}
	if !validUTF8Prefix(probe, len(probe) == encodingProbeSize) {
		return nil, ErrInvalidEncoding
	}

	cr := csv.NewReader(buf)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	for _, opt := range opts {
		opt(cr)
	}

	record, err := cr.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	headers := make([]string, len(record))
	for i, h := range record {
		headers[i] = NormalizeHeader(h)
	}
	return &Reader{csv: cr, headers: headers, line: 1}, nil
}

// Headers returns the normalized header names
func (r *Reader) Headers() []string {
	return r.headers
}

// HasColumn reports whether the header contains column
func (r *Reader) HasColumn(column string) bool {
	for _, h := range r.headers {
		if h == column {
			return true
		}
	}
	return false
}

// Next returns the next non-blank row or io.EOF
func (r *Reader) Next() (*Row, error) {
	for {
		record, err := r.csv.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		r.line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		if blank(record) {
			continue
		}

		values := make(map[string]string, len(r.headers))
		for i, h := range r.headers {
			if h == "" || i >= len(record) {
				continue
			}
			values[h] = strings.TrimSpace(record[i])
		}
		return &Row{Line: r.line, Values: values}, nil
	}
}

// NormalizeHeader maps "Due Date", "due-date" and "dueDate" to "due_date"
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	var b strings.Builder
	prevLower := false
	for _, c := range h {
		switch {
		case c == ' ' || c == '-' || c == '_' || c == '.':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteRune('_')
			}
			prevLower = false
		case unicode.IsUpper(c):
			if prevLower {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(c))
			prevLower = false
		default:
			b.WriteRune(c)
			prevLower = unicode.IsLower(c) || unicode.IsDigit(c)
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// validUTF8Prefix tolerates a rune cut in half at the end of a full probe
func validUTF8Prefix(b []byte, full bool) bool {
	if utf8.Valid(b) {
		return true
	}
	if !full {
		return false
	}
	for cut := 1; cut < utf8.UTFMax && cut < len(b); cut++ {
		if utf8.Valid(b[:len(b)-cut]) {
			return true
		}
	}
	return false
}
