package core

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PreviewSummary contains the counts over the previewed sample.
type PreviewSummary struct {
	TotalRows       int `json:"total_rows"`
	SampledRows     int `json:"sampled_rows"`
	ValidRows       int `json:"valid_rows"`
	InvalidRows     int `json:"invalid_rows"`
	BlankRows       int `json:"blank_rows"`
	NewRows         int `json:"new_rows"`
	DuplicateRows   int `json:"duplicate_rows"`
	ConflictingRows int `json:"conflicting_rows"`
}

// PreviewRow is one sampled row as the import would see it.
type PreviewRow struct {
	Row      int                       `json:"row"`
	Line     int                       `json:"line"`
	Status   string                    `json:"status"`
	Values   map[CanonicalField]string `json:"values,omitempty"`
	Errors   []FieldError              `json:"errors,omitempty"`
	Verdict  *DuplicateVerdict         `json:"verdict,omitempty"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// PreviewResult is the read-only dry run of a batch.
type PreviewResult struct {
	BatchID     string            `json:"batch_id"`
	Schema      string            `json:"schema"`
	Dialect     Dialect           `json:"dialect"`
	Headers     []string          `json:"headers"`
	Mapping     HeaderMapping     `json:"mapping"`
	Suggestions []TemplateMatch   `json:"suggestions"`
	Summary     PreviewSummary    `json:"summary"`
	Rows        []PreviewRow      `json:"rows"`
	Issues      []StructuralIssue `json:"issues"`
	Warnings    []string          `json:"warnings"`
	// CanImport is false while mandatory fields are unmapped.
	CanImport        bool  `json:"can_import"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// Preview prepares raw and previews its first maxRows rows.
func (im *Importer) Preview(ctx context.Context, raw []byte, maxRows int) (*PreviewResult, error) {
	p, err := im.Prepare(ctx, raw)
	if err != nil {
		return nil, err
	}
	return im.PreviewBatch(ctx, p, maxRows, ImportOptions{})
}

// PreviewBatch validates the first maxRows rows of a prepared batch and
// shows the duplicate verdict each would get. It never writes to the store.
func (im *Importer) PreviewBatch(ctx context.Context, p *Prepared, maxRows int, opts ImportOptions) (*PreviewResult, error) {
	start := time.Now()
	if maxRows <= 0 {
		maxRows = DefaultPreviewRows
	}

	mapping, err := im.ResolveMapping(p, opts)
	if err != nil {
		return nil, err
	}

	res := &PreviewResult{
		BatchID:     p.ID,
		Schema:      im.schema.Key,
		Dialect:     p.Batch.Dialect,
		Headers:     p.Batch.Headers,
		Mapping:     mapping,
		Suggestions: p.Suggestions,
		Rows:        []PreviewRow{},
		Issues:      p.Batch.Issues,
		Warnings:    append([]string{}, p.Warnings...),
		CanImport:   len(mapping.MissingMandatory) == 0,
	}
	res.Summary.TotalRows = p.Batch.TotalRows
	if w := unmappedWarning(mapping); w != "" {
		res.Warnings = append(res.Warnings, w)
	}

	source := opts.DefaultSourceTag
	if source == "" {
		source = im.opts.DefaultSource
	}
	validator := NewValidator(im.schema, mapping, source, "")
	var resolver *Resolver
	if im.store != nil {
		resolver = NewResolver(im.store, im.schema)
	}
	seen := make(map[string]int)

	for _, row := range p.Batch.Preview(maxRows) {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "preview: cancelled")
		}
		res.Summary.SampledRows++

		o := validator.Validate(row)
		pr := PreviewRow{Row: row.Index, Line: row.Line, Status: o.Kind.String(), Warnings: o.Warnings}
		switch o.Kind {
		case OutcomeBlank:
			res.Summary.BlankRows++
		case OutcomeInvalid:
			res.Summary.InvalidRows++
			pr.Errors = o.Errors
		case OutcomeValid:
			res.Summary.ValidRows++
			pr.Values = o.Record.Values()
			pr.Verdict = im.previewVerdict(ctx, resolver, o.Record, seen)
			switch pr.Verdict.Kind {
			case VerdictExactDuplicate:
				res.Summary.DuplicateRows++
			case VerdictConflicting:
				res.Summary.ConflictingRows++
			default:
				res.Summary.NewRows++
			}
		}
		res.Rows = append(res.Rows, pr)
	}

	res.ProcessingTimeMs = time.Since(start).Milliseconds()
	return res, nil
}

// previewVerdict resolves against the store, then against identifiers seen
// earlier in the sample.
func (im *Importer) previewVerdict(ctx context.Context, resolver *Resolver, rec NormalizedRecord, seen map[string]int) *DuplicateVerdict {
	v := DuplicateVerdict{Kind: VerdictNew}
	if resolver != nil {
		got, err := resolver.Resolve(ctx, rec)
		if err != nil {
			im.log.Warn("preview lookup failed", zap.Int("row", rec.Provenance.Row), zap.Error(err))
		} else {
			v = got
		}
	}

	if id := im.schema.Identifier; id != "" && rec.Get(id) != "" {
		key := strings.ToLower(rec.Get(id))
		if first, dup := seen[key]; dup && v.Kind == VerdictNew {
			v = DuplicateVerdict{
				Kind:       VerdictExactDuplicate,
				MatchedBy:  id,
				WithinFile: true,
			}
			im.log.Debug("duplicate within sample", zap.Int("row", rec.Provenance.Row), zap.Int("first_row", first))
		} else if !dup {
			seen[key] = rec.Provenance.Row
		}
	}
	return &v
}
