package core

// structure.go parses decoded text into a header row and data rows.
//
// A Batch keeps the decoded text, not the parsed rows. Rows() starts a fresh
// reader at data row 1 every time it is called, so a preview and the real
// import share one decode and one dialect detection without holding every
// row in memory.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// UnnamedColumnPrefix names header positions that were empty.
const UnnamedColumnPrefix = "unnamed_column_"

// MaxRaggedIssues caps how many ragged rows are reported individually.
const MaxRaggedIssues = 100

// IssueKind classifies a StructuralIssue.
type IssueKind string

const (
	IssueMissingHeader   IssueKind = "missing_header"
	IssueEmptyHeader     IssueKind = "empty_header"
	IssueDuplicateHeader IssueKind = "duplicate_header"
	IssueRaggedRow       IssueKind = "ragged_row"
	IssueMalformedRow    IssueKind = "malformed_row"
)

// StructuralIssue is a non-fatal problem with the shape of the input.
// Row is 0 for the header row; Column is 1-based, 0 when not applicable.
type StructuralIssue struct {
	Kind    IssueKind `json:"kind"`
	Row     int       `json:"row,omitempty"`
	Column  int       `json:"column,omitempty"`
	Message string    `json:"message"`
}

// Batch is a decoded upload with its dialect and header row.
type Batch struct {
	Dialect Dialect
	// Headers are the cleaned header names; empty positions carry
	// placeholder names.
	Headers []string
	Issues  []StructuralIssue
	// TotalRows counts data rows, including blank ones and empty lines
	// between records.
	TotalRows int

	text       string
	rawHeaders []string
}

// ParseStructure reads the header row and scans the data rows once for
// structural issues. It never fails; problems are recorded as issues.
func ParseStructure(text string, dialect Dialect) *Batch {
	b := &Batch{Dialect: dialect, text: text}

	r := b.reader()
	header, err := r.Read()
	if err != nil {
		b.Issues = append(b.Issues, StructuralIssue{
			Kind:    IssueMissingHeader,
			Message: "no header row found",
		})
		return b
	}

	b.rawHeaders = make([]string, len(header))
	b.Headers = make([]string, len(header))
	allEmpty := true
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = CleanCell(h)
		b.rawHeaders[i] = h
		if h == "" {
			b.Headers[i] = fmt.Sprintf("%s%d", UnnamedColumnPrefix, i+1)
			continue
		}
		allEmpty = false
		b.Headers[i] = h

		key := strings.ToLower(h)
		if first, dup := seen[key]; dup {
			b.Issues = append(b.Issues, StructuralIssue{
				Kind:    IssueDuplicateHeader,
				Column:  i + 1,
				Message: fmt.Sprintf("header %q repeats column %d", h, first),
			})
		} else {
			seen[key] = i + 1
		}
	}

	if allEmpty {
		b.Issues = append(b.Issues, StructuralIssue{
			Kind:    IssueMissingHeader,
			Message: "header row is empty",
		})
	} else {
		for i, h := range b.rawHeaders {
			if h == "" {
				b.Issues = append(b.Issues, StructuralIssue{
					Kind:    IssueEmptyHeader,
					Column:  i + 1,
					Message: fmt.Sprintf("column %d has no header; using %s (delimiter may be wrong)", i+1, b.Headers[i]),
				})
			}
		}
	}

	b.scan(&RowReader{r: r, lastLine: recordEndLine(r, header)})
	return b
}

// scan walks every data row once, counting rows and recording ragged and
// malformed ones. Empty lines count as rows too.
func (b *Batch) scan(rr *RowReader) {
	ragged := 0
	for {
		row, err := rr.Next()
		if err != nil {
			break
		}
		b.TotalRows++

		if row.Malformed != "" {
			msg := row.Malformed
			if row.Line > 0 {
				msg = fmt.Sprintf("line %d: %s", row.Line, row.Malformed)
			}
			b.Issues = append(b.Issues, StructuralIssue{
				Kind:    IssueMalformedRow,
				Row:     row.Index,
				Message: msg,
			})
			continue
		}

		if len(row.Values) > 0 && len(row.Values) != len(b.Headers) {
			ragged++
			if ragged <= MaxRaggedIssues {
				b.Issues = append(b.Issues, StructuralIssue{
					Kind:    IssueRaggedRow,
					Row:     row.Index,
					Message: fmt.Sprintf("row has %d fields, header has %d", len(row.Values), len(b.Headers)),
				})
			}
		}
	}
	if ragged > MaxRaggedIssues {
		b.Issues = append(b.Issues, StructuralIssue{
			Kind:    IssueRaggedRow,
			Message: fmt.Sprintf("%d more ragged rows not listed", ragged-MaxRaggedIssues),
		})
	}
}

// HasHeader reports whether a usable header row was found.
func (b *Batch) HasHeader() bool {
	for _, h := range b.rawHeaders {
		if h != "" {
			return true
		}
	}
	return false
}

// IsPlaceholder reports whether the header at position i was empty.
func (b *Batch) IsPlaceholder(i int) bool {
	return i >= 0 && i < len(b.rawHeaders) && b.rawHeaders[i] == ""
}

func (b *Batch) reader() *csv.Reader {
	r := csv.NewReader(strings.NewReader(b.text))
	r.Comma = b.Dialect.Comma()
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = false
	return r
}

// Rows returns a reader positioned at data row 1.
func (b *Batch) Rows() *RowReader {
	r := b.reader()
	rr := &RowReader{r: r}
	if len(b.Headers) > 0 {
		if header, err := r.Read(); err == nil {
			rr.lastLine = recordEndLine(r, header)
		}
	}
	return rr
}

// recordEndLine is the physical line the record just read ends on.
func recordEndLine(r *csv.Reader, rec []string) int {
	if len(rec) == 0 {
		return 0
	}
	last := len(rec) - 1
	line, _ := r.FieldPos(last)
	return line + strings.Count(rec[last], "\n")
}

// Preview returns at most max data rows from the start of the batch.
func (b *Batch) Preview(max int) []RawRow {
	rows := b.Rows()
	var out []RawRow
	for len(out) < max {
		row, err := rows.Next()
		if err != nil {
			break
		}
		out = append(out, row)
	}
	return out
}

// RowReader iterates data rows. Obtain one from Batch.Rows.
//
// encoding/csv skips empty lines without a trace. RowReader notices the
// gap in line numbers and returns each skipped line as a row with no
// values, which the validator classifies as blank. Empty lines after the
// last record are end-of-file padding and are not returned.
type RowReader struct {
	r        *csv.Reader
	index    int
	lastLine int

	gapNext int
	gapEnd  int
	held    *RawRow
}

// Next returns the next data row, or io.EOF after the last one. A row the
// CSV reader cannot parse comes back with Malformed set instead of an error
// so the caller can record it and carry on.
func (rr *RowReader) Next() (RawRow, error) {
	if rr.r == nil {
		return RawRow{}, io.EOF
	}
	if rr.held == nil && rr.gapNext >= rr.gapEnd {
		prev := rr.lastLine
		row, ok := rr.read()
		if !ok {
			return RawRow{}, io.EOF
		}
		if prev > 0 && row.Line > prev+1 {
			rr.gapNext, rr.gapEnd = prev+1, row.Line
		}
		rr.held = &row
	}

	rr.index++
	if rr.gapNext < rr.gapEnd {
		line := rr.gapNext
		rr.gapNext++
		return RawRow{Index: rr.index, Line: line, Values: []string{}}, nil
	}

	row := *rr.held
	rr.held = nil
	row.Index = rr.index
	return row, nil
}

// read pulls one record from the CSV reader and advances lastLine.
func (rr *RowReader) read() (RawRow, bool) {
	rec, err := rr.r.Read()
	if errors.Is(err, io.EOF) {
		return RawRow{}, false
	}

	var pe *csv.ParseError
	if errors.As(err, &pe) {
		if pe.Line > rr.lastLine {
			rr.lastLine = pe.Line
		}
		return RawRow{Line: pe.StartLine, Malformed: pe.Err.Error()}, true
	} else if err != nil {
		return RawRow{Malformed: err.Error()}, true
	}

	line, _ := rr.r.FieldPos(0)
	rr.lastLine = recordEndLine(rr.r, rec)
	return RawRow{Line: line, Values: rec}, true
}
