package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/JonMunkholm/crmingest/internal/core"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// maxListed caps the per-row lines printed for errors and conflicts.
const maxListed = 20

func renderDialect(w io.Writer, d core.Dialect) {
	delim := d.Delimiter
	if delim == "\t" {
		delim = `\t`
	}
	line := fmt.Sprintf("Encoding %s, delimiter %q", cyan(d.Encoding), delim)
	if d.HadBOM {
		line += ", BOM"
	}
	if d.LowConfidence {
		line += " " + yellow("(low confidence)")
	}
	fmt.Fprintln(w, line)
}

func renderMapping(w io.Writer, m core.HeaderMapping) {
	fmt.Fprintf(w, "%s (confidence %.0f%%)\n", bold("Mapping"), m.Confidence*100)
	for _, c := range m.Columns {
		fmt.Fprintf(w, "  %-28s -> %s %s\n", c.Header, green(string(c.Field)), matchNote(c.Match))
	}
	for _, h := range m.Unmapped {
		fmt.Fprintf(w, "  %-28s -> %s\n", h, yellow("(ignored)"))
	}
	for _, f := range m.MissingMandatory {
		fmt.Fprintf(w, "  %s %s\n", red("missing mandatory field:"), f)
	}
}

func matchNote(k core.MatchKind) string {
	if k == core.MatchExact {
		return ""
	}
	return "(" + string(k) + ")"
}

func renderIssues(w io.Writer, issues []core.StructuralIssue, warnings []string) {
	for _, is := range issues {
		fmt.Fprintf(w, "  %s %s\n", yellow("!"), is.Message)
	}
	for _, msg := range warnings {
		fmt.Fprintf(w, "  %s %s\n", yellow("!"), msg)
	}
}

func renderPreview(w io.Writer, res *core.PreviewResult) {
	renderDialect(w, res.Dialect)
	renderMapping(w, res.Mapping)
	renderIssues(w, res.Issues, res.Warnings)

	for _, s := range res.Suggestions {
		fmt.Fprintf(w, "Template %s matches %.0f%% of headers\n", cyan(s.Template.Name), s.MatchScore*100)
	}

	fmt.Fprintf(w, "\n%s %d of %d rows\n", bold("Preview"), res.Summary.SampledRows, res.Summary.TotalRows)
	for _, r := range res.Rows {
		fmt.Fprintf(w, "  row %-5d %s\n", r.Row, previewStatus(r))
	}

	s := res.Summary
	fmt.Fprintf(w, "\n%s valid, %s invalid, %d blank; %s new, %s duplicate, %s conflicting\n",
		green(s.ValidRows), red(s.InvalidRows), s.BlankRows,
		green(s.NewRows), cyan(s.DuplicateRows), yellow(s.ConflictingRows))
	if res.CanImport {
		fmt.Fprintf(w, "%s batch %s\n", green("Ready to import:"), res.BatchID)
	} else {
		fmt.Fprintln(w, red("Cannot import until every mandatory field is mapped"))
	}
}

func previewStatus(r core.PreviewRow) string {
	switch {
	case len(r.Errors) > 0:
		msgs := make([]string, len(r.Errors))
		for i, e := range r.Errors {
			msgs[i] = e.Error()
		}
		return red(r.Status) + "  " + strings.Join(msgs, "; ")
	case r.Verdict != nil && r.Verdict.Kind == core.VerdictExactDuplicate:
		return cyan(r.Status)
	case r.Verdict != nil && r.Verdict.Kind == core.VerdictConflicting:
		return yellow(r.Status) + "  differs in " + joinFields(r.Verdict.Differing)
	case r.Status == "blank":
		return r.Status
	default:
		return green(r.Status)
	}
}

func renderReport(w io.Writer, r *core.ImportReport) {
	renderDialect(w, r.Dialect)
	renderMapping(w, r.Mapping)
	renderIssues(w, r.Issues, r.Warnings)

	c := r.Counts
	fmt.Fprintf(w, "\n%s %s (%s, %s)\n", bold("Import"), r.ImportID, r.Phase, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  attempted    %d\n", c.Attempted)
	fmt.Fprintf(w, "  succeeded    %s\n", green(c.Succeeded))
	fmt.Fprintf(w, "  duplicates   %s\n", cyan(c.SkippedDuplicate))
	fmt.Fprintf(w, "  conflicting  %s\n", yellow(c.Conflicting))
	fmt.Fprintf(w, "  failed       %s\n", red(c.Failed))
	fmt.Fprintf(w, "  blank        %d\n", c.SkippedBlank)

	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Errors"))
		for i, e := range r.Errors {
			if i == maxListed {
				fmt.Fprintf(w, "  ... %d more\n", len(r.Errors)-maxListed)
				break
			}
			fmt.Fprintf(w, "  row %-5d %s %s\n", e.Row, red(string(e.Kind)), e.Message)
		}
	}
	if len(r.Conflicts) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Conflicts"))
		for i, cf := range r.Conflicts {
			if i == maxListed {
				fmt.Fprintf(w, "  ... %d more\n", len(r.Conflicts)-maxListed)
				break
			}
			fmt.Fprintf(w, "  row %-5d matches %s by %s, differs in %s\n",
				cf.Row, cf.ExistingID, cf.MatchedBy, yellow(joinFields(cf.Fields)))
		}
	}
	if r.Cancelled {
		fmt.Fprintln(w, red("Import was cancelled; counts cover the rows processed before it stopped"))
	}
}

func renderDiagnosis(w io.Writer, d *core.Diagnosis) {
	if !d.Decoded {
		fmt.Fprintln(w, red("The file could not be decoded as text"))
	} else {
		fmt.Fprintf(w, "%d bytes, %d lines, %s line endings, %d data rows\n",
			d.SizeBytes, d.Lines, d.LineEndings, d.TotalRows)
	}
	if d.Dialect != nil {
		renderDialect(w, *d.Dialect)
	}
	if len(d.Headers) > 0 {
		fmt.Fprintf(w, "Headers: %s\n", strings.Join(d.Headers, " | "))
	}
	if d.Mapping != nil {
		renderMapping(w, *d.Mapping)
	}
	renderIssues(w, d.Issues, nil)
	for _, ci := range d.CommonIssues {
		fmt.Fprintf(w, "  %s %s\n", yellow(ci.Kind+":"), ci.Message)
	}
	if d.Healthy() {
		fmt.Fprintln(w, green("No problems found"))
	}
}

func renderSchemas(w io.Writer, schemas []*core.Schema) {
	for _, s := range schemas {
		fmt.Fprintf(w, "%s  %s\n", bold(s.Key), s.Label)
		for _, f := range s.Fields() {
			name := string(f.Name)
			if f.Mandatory {
				name = red(name + "*")
			}
			line := fmt.Sprintf("  %-24s %-8s", name, f.Type)
			if len(f.Aliases) > 0 {
				line += " " + cyan(strings.Join(f.Aliases, ", "))
			}
			fmt.Fprintln(w, line)
		}
	}
}

func joinFields(fields []core.CanonicalField) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
