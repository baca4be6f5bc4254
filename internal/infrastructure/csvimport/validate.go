package csvimport

import (
	"errors"
	"fmt"
	"io"
)

// Options bound a validation run
type Options struct {
	MaxRows   int
	MaxErrors int
	Reader    []ReaderOption
}

// DefaultOptions suit interactive uploads
func DefaultOptions() Options {
	return Options{MaxRows: 5000, MaxErrors: 500}
}

// Result is the outcome of validating a file
type Result struct {
	TotalRows int
	ValidRows []*Row
	Errors    *ErrorList
}

// Valid reports whether every row passed
func (r *Result) Valid() bool {
	return r.Errors.Len() == 0 && !r.Errors.Truncated()
}

// Validate reads the whole file and checks every row against rules. Rows with
// any error are left out of ValidRows. File level problems are returned as
// errors and produce no Result.
func Validate(src io.Reader, rules []FieldRule, opts Options) (*Result, error) {
	reader, err := NewReader(src, opts.Reader...)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if rule.Required && !reader.HasColumn(rule.Column) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, rule.Column)
		}
	}

	result := &Result{ValidRows: []*Row{}, Errors: NewErrorList(opts.MaxErrors)}
	seen := make(map[string]map[string]int)
	for _, rule := range rules {
		if rule.Unique {
			seen[rule.Column] = make(map[string]int)
		}
	}

	for {
		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		result.TotalRows++
		if opts.MaxRows > 0 && result.TotalRows > opts.MaxRows {
			return nil, fmt.Errorf("%w of %d", ErrTooManyRows, opts.MaxRows)
		}

		if validateRow(row, rules, seen, result.Errors) {
			result.ValidRows = append(result.ValidRows, row)
		}
	}
	return result, nil
}

func validateRow(row *Row, rules []FieldRule, seen map[string]map[string]int, errs *ErrorList) bool {
	ok := true
	fail := func(rule FieldRule, value, code, message string) {
		ok = false
		errs.Add(RowError{Line: row.Line, Column: rule.Column, Value: value, Code: code, Message: message})
	}

	for _, rule := range rules {
		value := row.Get(rule.Column)
		if value == "" {
			if rule.Required {
				fail(rule, value, CodeRequired, "is required")
			}
			continue
		}
		if code, message := rule.check(value); code != "" {
			fail(rule, value, code, message)
			continue
		}
		if rule.Unique {
			if first, dup := seen[rule.Column][value]; dup {
				fail(rule, value, CodeDuplicateInFile, fmt.Sprintf("already used on line %d", first))
				continue
			}
			seen[rule.Column][value] = row.Line
		}
	}
	return ok
}
