package csvimport

import (
	"errors"
	"fmt"
)

// File-level errors
var (
	ErrEmptyFile       = errors.New("CSV file is empty")
	ErrInvalidEncoding = errors.New("CSV file must be UTF-8, or UTF-16 with a byte order mark")
	ErrMissingHeader   = errors.New("CSV file has no header row")
	ErrMissingColumns  = errors.New("CSV file is missing required columns")
	ErrNoDataRows      = errors.New("CSV file contains no data rows")
	ErrTooManyRows     = errors.New("CSV file has too many rows")
)

// IsFileError reports whether err rejects the file as a whole
func IsFileError(err error) bool {
	var rowErr RowError
	return errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrInvalidEncoding) ||
		errors.Is(err, ErrMissingHeader) ||
		errors.Is(err, ErrMissingColumns) ||
		errors.Is(err, ErrNoDataRows) ||
		errors.Is(err, ErrTooManyRows) ||
		errors.As(err, &rowErr)
}

// Row error codes
const (
	CodeMalformedRow    = "MALFORMED_ROW"
	CodeRequiredField   = "REQUIRED_FIELD"
	CodeInvalidValue    = "INVALID_VALUE"
	CodeDuplicateInFile = "DUPLICATE_IN_FILE"
)

// RowError describes why one row was rejected
type RowError struct {
	Line    int    `json:"line"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %s: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ErrorCollection keeps the first max row errors and counts the rest
type ErrorCollection struct {
	errors []RowError
	max    int
	total  int
	lines  map[int]struct{}
}

// NewErrorCollection creates a collection. max <= 0 defaults to 100.
func NewErrorCollection(max int) *ErrorCollection {
	if max <= 0 {
		max = 100
	}
	return &ErrorCollection{max: max, lines: make(map[int]struct{})}
}

// Add records err
func (c *ErrorCollection) Add(err RowError) {
	c.total++
	c.lines[err.Line] = struct{}{}
	if len(c.errors) < c.max {
		c.errors = append(c.errors, err)
	}
}

// Errors returns the kept errors in insertion order
func (c *ErrorCollection) Errors() []RowError {
	return c.errors
}

// Total counts every error added, kept or not
func (c *ErrorCollection) Total() int {
	return c.total
}

// FailedLines counts the distinct lines with at least one error
func (c *ErrorCollection) FailedLines() int {
	return len(c.lines)
}

// HasLine reports whether line already has an error
func (c *ErrorCollection) HasLine(line int) bool {
	_, ok := c.lines[line]
	return ok
}

// Truncated reports whether errors were dropped
func (c *ErrorCollection) Truncated() bool {
	return c.total > len(c.errors)
}
