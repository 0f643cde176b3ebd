// Package csvimport reads CSV uploads into header-keyed rows.
package csvimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const encodingSniffSize = 4096

// Parser reads rows from a CSV document whose first record is the header.
// Header names are normalised with NormalizeHeader.
type Parser struct {
	delimiter rune
	maxRows   int
	reader    *csv.Reader
	headers   []string
	index     map[string]int
	rows      int
}

// ParserOption configures a Parser
type ParserOption func(*Parser)

// WithDelimiter sets the field delimiter. Default ','.
func WithDelimiter(d rune) ParserOption {
	return func(p *Parser) {
		p.delimiter = d
	}
}

// WithMaxRows limits the number of data rows. Zero means no limit.
func WithMaxRows(n int) ParserOption {
	return func(p *Parser) {
		p.maxRows = n
	}
}

// NewParser checks the encoding and reads the header row. UTF-8 input may
// start with a BOM; UTF-16 input needs one.
func NewParser(r io.Reader, opts ...ParserOption) (*Parser, error) {
	p := &Parser{
		delimiter: ',',
		index:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}

	buffered := bufio.NewReaderSize(r, encodingSniffSize)
	head, err := buffered.Peek(encodingSniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}
	if !hasUTF16BOM(head) && !validUTF8Prefix(head, len(head) == encodingSniffSize) {
		return nil, ErrInvalidEncoding
	}

	decoded := transform.NewReader(buffered, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	p.reader = csv.NewReader(decoded)
	p.reader.Comma = p.delimiter
	p.reader.LazyQuotes = true
	p.reader.TrimLeadingSpace = true
	p.reader.FieldsPerRecord = -1

	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) readHeader() error {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	p.headers = make([]string, len(record))
	for i, raw := range record {
		name := NormalizeHeader(raw)
		p.headers[i] = name
		if _, dup := p.index[name]; !dup && name != "" {
			p.index[name] = i
		}
	}
	if len(p.index) == 0 {
		return ErrMissingHeader
	}
	return nil
}

// Headers returns the normalised header names in file order
func (p *Parser) Headers() []string {
	return p.headers
}

// MissingHeaders returns the required columns absent from the header
func (p *Parser) MissingHeaders(required ...string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := p.index[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Next returns the next data row, io.EOF at the end of the file, or
// ErrTooManyRows once the row limit is exceeded.
func (p *Parser) Next() (*Row, error) {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, RowError{Line: parseErr.Line, Code: CodeMalformedRow, Message: parseErr.Err.Error()}
		}
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	p.rows++
	if p.maxRows > 0 && p.rows > p.maxRows {
		return nil, ErrTooManyRows
	}

	line, _ := p.reader.FieldPos(0)
	row := &Row{Line: line, values: make(map[string]string, len(p.index))}
	for name, i := range p.index {
		if i < len(record) {
			row.values[name] = strings.TrimSpace(record[i])
		}
	}
	return row, nil
}

// ReadAll reads the remaining rows, skipping blank ones. A malformed row
// stops the read and is returned as a RowError.
func (p *Parser) ReadAll() ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, err
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}
	return rows, nil
}

// Row is one data record keyed by normalised header
type Row struct {
	// Line is the 1-based line the record starts on
	Line   int
	values map[string]string
}

// Get returns the trimmed value of column, or "" when absent
func (r *Row) Get(column string) string {
	return r.values[column]
}

// IsEmpty reports whether every value is blank
func (r *Row) IsEmpty() bool {
	for _, v := range r.values {
		if v != "" {
			return false
		}
	}
	return true
}

// NormalizeHeader lower-cases a header and joins its words with
// underscores, so "First Name" and "first-name" both become "first_name".
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
}

func hasUTF16BOM(b []byte) bool {
	return len(b) >= 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF))
}

// validUTF8Prefix checks b, allowing a rune cut off at the end of a truncated sniff
func validUTF8Prefix(b []byte, truncated bool) bool {
	if utf8.Valid(b) {
		return true
	}
	if !truncated {
		return false
	}
	for i := 1; i < utf8.UTFMax && i < len(b); i++ {
		if utf8.Valid(b[:len(b)-i]) {
			return true
		}
	}
	return false
}
