package core

// diagnose.go explains why an upload misbehaves. Nothing here touches the
// store; everything that can be reported is reported, even when the file
// cannot be decoded.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

// DiagnoseSampleRows is how many data rows a diagnosis shows.
const DiagnoseSampleRows = 5

// Common issue kinds.
const (
	CommonNullBytes      = "null_bytes"
	CommonNonPrintable   = "non_printable"
	CommonLongLine       = "long_line"
	CommonMixedQuotes    = "mixed_quotes"
	CommonMixedEndings   = "mixed_line_endings"
	CommonFormulaCells   = "formula_cells"
	CommonUndecodable    = "undecodable"
	CommonLowConfidence  = "ambiguous_delimiter"
	CommonMissingMapping = "missing_mandatory"
)

// CommonIssue is a heuristic finding about the raw content.
type CommonIssue struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Diagnosis is the troubleshooting view of an upload.
type Diagnosis struct {
	SizeBytes         int               `json:"size_bytes"`
	Decoded           bool              `json:"decoded"`
	Encoding          string            `json:"encoding,omitempty"`
	HadBOM            bool              `json:"bom"`
	LineEndings       string            `json:"line_endings,omitempty"`
	Lines             int               `json:"lines"`
	Dialect           *Dialect          `json:"dialect,omitempty"`
	Headers           []string          `json:"headers"`
	TotalRows         int               `json:"total_rows"`
	Issues            []StructuralIssue `json:"issues"`
	CommonIssues      []CommonIssue     `json:"common_issues"`
	Mapping           *HeaderMapping    `json:"mapping,omitempty"`
	MappingConfidence float64           `json:"mapping_confidence"`
	MissingMandatory  []CanonicalField  `json:"missing_mandatory"`
	SampleRows        [][]string        `json:"sample_rows"`
}

// Healthy reports whether the upload could be imported as-is.
func (d *Diagnosis) Healthy() bool {
	return d.Decoded && len(d.MissingMandatory) == 0 && len(d.CommonIssues) == 0 && len(d.Issues) == 0
}

// Diagnose analyzes raw without persisting anything. An undecodable file
// is reported in the diagnosis rather than returned as an error.
func (im *Importer) Diagnose(ctx context.Context, raw []byte) (*Diagnosis, error) {
	if len(raw) == 0 {
		return nil, eris.Wrap(ErrEmptyInput, "diagnose")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "diagnose")
	}

	d := &Diagnosis{
		SizeBytes:        len(raw),
		Headers:          []string{},
		Issues:           []StructuralIssue{},
		CommonIssues:     []CommonIssue{},
		MissingMandatory: []CanonicalField{},
		SampleRows:       [][]string{},
	}
	if n := strings.Count(string(raw), "\x00"); n > 0 {
		d.CommonIssues = append(d.CommonIssues, CommonIssue{
			Kind:    CommonNullBytes,
			Message: fmt.Sprintf("%d null bytes found; the file may be corrupted or UTF-16 without a byte order mark", n),
		})
	}

	p, err := im.Prepare(ctx, raw)
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		d.CommonIssues = append(d.CommonIssues, CommonIssue{Kind: CommonUndecodable, Message: decErr.Error()})
		return d, nil
	}
	if err != nil {
		return nil, err
	}

	text := p.Batch.text
	d.Decoded = true
	d.Encoding = p.Batch.Dialect.Encoding
	d.HadBOM = p.Batch.Dialect.HadBOM
	d.LineEndings, d.Lines = lineEndings(text)
	dialect := p.Batch.Dialect
	d.Dialect = &dialect
	d.Headers = p.Batch.Headers
	d.TotalRows = p.Batch.TotalRows
	d.Issues = p.Batch.Issues
	d.Mapping = &p.Mapping
	d.MappingConfidence = p.Mapping.Confidence
	d.MissingMandatory = p.Mapping.MissingMandatory

	if dialect.LowConfidence {
		d.CommonIssues = append(d.CommonIssues, CommonIssue{
			Kind:    CommonLowConfidence,
			Message: "no delimiter split the first two rows into several fields; assuming comma",
		})
	}
	if len(d.MissingMandatory) > 0 {
		names := make([]string, len(d.MissingMandatory))
		for i, f := range d.MissingMandatory {
			names[i] = string(f)
		}
		d.CommonIssues = append(d.CommonIssues, CommonIssue{
			Kind:    CommonMissingMapping,
			Message: "no column maps to mandatory fields: " + strings.Join(names, ", "),
		})
	}
	if d.LineEndings == "mixed" {
		d.CommonIssues = append(d.CommonIssues, CommonIssue{
			Kind:    CommonMixedEndings,
			Message: "file mixes CRLF and LF line endings",
		})
	}
	d.CommonIssues = append(d.CommonIssues, contentIssues(text)...)

	for _, row := range p.Batch.Preview(DiagnoseSampleRows) {
		d.SampleRows = append(d.SampleRows, row.Values)
	}
	return d, nil
}

// lineEndings names the line terminator style and counts lines.
func lineEndings(text string) (string, int) {
	crlf := strings.Count(text, "\r\n")
	lf := strings.Count(text, "\n") - crlf
	cr := strings.Count(text, "\r") - crlf

	lines := crlf + lf + cr
	if text != "" && !strings.HasSuffix(text, "\n") && !strings.HasSuffix(text, "\r") {
		lines++
	}

	kinds := 0
	for _, n := range []int{crlf, lf, cr} {
		if n > 0 {
			kinds++
		}
	}
	switch {
	case kinds > 1:
		return "mixed", lines
	case crlf > 0:
		return "CRLF", lines
	case cr > 0:
		return "CR", lines
	case lf > 0:
		return "LF", lines
	default:
		return "none", lines
	}
}

func contentIssues(text string) []CommonIssue {
	var issues []CommonIssue

	head := sampleText(text, DefaultSampleSize)
	found := make(map[rune]bool)
	for _, r := range head {
		if r == '\n' || r == '\r' || r == '\t' || r == 0 {
			continue
		}
		if unicode.IsControl(r) || r == '\uFFFD' {
			found[r] = true
		}
	}
	if len(found) > 0 {
		codes := make([]string, 0, len(found))
		for r := range found {
			codes = append(codes, fmt.Sprintf("%U", r))
		}
		sort.Strings(codes)
		issues = append(issues, CommonIssue{
			Kind:    CommonNonPrintable,
			Message: "non-printable characters found: " + strings.Join(codes, ", "),
		})
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	total, longest := 0, 0
	for _, l := range lines {
		total += len(l)
		longest = max(longest, len(l))
	}
	if avg := total / len(lines); len(lines) > 2 && longest > 1000 && longest > avg*10 {
		issues = append(issues, CommonIssue{
			Kind:    CommonLongLine,
			Message: fmt.Sprintf("extremely long line (%d characters); line breaks may be missing", longest),
		})
	}

	if strings.Contains(head, `"`) && strings.Contains(head, `'`) {
		issues = append(issues, CommonIssue{
			Kind:    CommonMixedQuotes,
			Message: "both single and double quotes appear; single quotes are not CSV quoting",
		})
	}

	if strings.Contains(text, `="`) {
		issues = append(issues, CommonIssue{
			Kind:    CommonFormulaCells,
			Message: `spreadsheet formula cells (="...") found; they are unwrapped on import`,
		})
	}
	return issues
}
