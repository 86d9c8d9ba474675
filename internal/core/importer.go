package core

// importer.go is the pipeline entry point.
//
//	Received → DialectDetected → StructureParsed → FieldsMapped
//	    → Rejected                       (missing mandatory fields)
//	    → PerRowProcessing → Reported    (always, once rows start)
//
// Rows are read in chunks. A chunk is validated in parallel, then a single
// writer resolves duplicates and commits in row order, so two rows of one
// file can never both believe they are new for the same identifier.

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/crmingest/internal/metrics"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Defaults for Options.
const (
	DefaultBatchSize   = 500
	DefaultWorkers     = 4
	DefaultPreviewRows = 10
)

// Options configures an Importer.
type Options struct {
	SampleSize    int
	BatchSize     int
	Workers       int
	Encodings     []string
	DefaultSource string
	Templates     *TemplateSet
	Logger        *zap.Logger
}

// ImportOptions are per-call settings.
type ImportOptions struct {
	// MappingOverride replaces the automatic mapping (header → field).
	MappingOverride map[string]CanonicalField
	// Template names a saved mapping to use when no override is given.
	Template string
	// DefaultSourceTag fills the schema's source field when a row leaves it
	// empty. Falls back to Options.DefaultSource.
	DefaultSourceTag string
}

// Importer runs previews, imports and diagnostics against one schema.
type Importer struct {
	schema *Schema
	store  RecordStore
	opts   Options
	log    *zap.Logger
}

// NewImporter creates an importer. store may be nil for an importer that
// only previews and diagnoses.
func NewImporter(schema *Schema, store RecordStore, opts Options) *Importer {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if len(opts.Encodings) == 0 {
		opts.Encodings = DefaultEncodings
	}
	log := opts.Logger
	if log == nil {
		log = zap.L()
	}
	return &Importer{
		schema: schema,
		store:  store,
		opts:   opts,
		log:    log.With(zap.String("schema", schema.Key)),
	}
}

// Schema returns the importer's schema.
func (im *Importer) Schema() *Schema { return im.schema }

// Templates returns the mapping templates the importer resolves by name.
func (im *Importer) Templates() *TemplateSet { return im.opts.Templates }

// Prepared is a decoded and parsed upload, ready to be previewed and
// imported any number of times.
type Prepared struct {
	ID          string
	Batch       *Batch
	Mapping     HeaderMapping
	Suggestions []TemplateMatch
	Warnings    []string
	Phase       Phase
	ReceivedAt  time.Time
}

// Prepare decodes raw, detects its dialect, parses its structure and maps
// its headers. Only a DecodeError (or empty input) fails.
func (im *Importer) Prepare(ctx context.Context, raw []byte) (*Prepared, error) {
	p := &Prepared{
		ID:         uuid.NewString(),
		Phase:      PhaseReceived,
		ReceivedAt: time.Now(),
	}
	if len(raw) == 0 {
		return nil, eris.Wrap(ErrEmptyInput, "import: prepare")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "import: prepare")
	}

	dec, err := Decode(raw, im.opts.Encodings)
	if err != nil {
		metrics.RecordDecodeFailure()
		return nil, err
	}

	dialect := DetectDialect(dec, im.opts.SampleSize)
	p.Phase = PhaseDialectDetected
	metrics.RecordDialect(dialect.Encoding, dialect.Delimiter, !dialect.LowConfidence)
	if dialect.LowConfidence {
		p.Warnings = append(p.Warnings, "could not detect the delimiter with confidence; assuming comma")
	}

	p.Batch = ParseStructure(dec.Text, dialect)
	p.Phase = PhaseStructureParsed
	for _, issue := range p.Batch.Issues {
		if issue.Kind == IssueMissingHeader || issue.Kind == IssueEmptyHeader {
			p.Warnings = append(p.Warnings, issue.Message)
		}
	}

	p.Mapping = MapHeaders(im.schema, p.Batch.Headers, p.Batch.IsPlaceholder)
	p.Suggestions = im.opts.Templates.Match(im.schema.Key, p.Batch.Headers)
	p.Phase = PhaseFieldsMapped
	metrics.RecordMapping(im.schema.Key, p.Mapping.Confidence)

	im.log.Debug("batch prepared",
		zap.String("batch_id", p.ID),
		zap.String("encoding", dialect.Encoding),
		zap.String("delimiter", dialect.Delimiter),
		zap.Int("headers", len(p.Batch.Headers)),
		zap.Int("rows", p.Batch.TotalRows),
		zap.Float64("confidence", p.Mapping.Confidence),
	)
	return p, nil
}

// ResolveMapping returns the mapping an import with opts would use.
func (im *Importer) ResolveMapping(p *Prepared, opts ImportOptions) (HeaderMapping, error) {
	switch {
	case len(opts.MappingOverride) > 0:
		return ApplyOverride(im.schema, p.Batch.Headers, opts.MappingOverride)
	case opts.Template != "":
		t, ok := im.opts.Templates.Get(opts.Template)
		if !ok {
			return p.Mapping, &SchemaError{
				Schema:   im.schema.Key,
				Problems: []string{"unknown mapping template " + opts.Template},
				Mapping:  p.Mapping,
			}
		}
		return ApplyOverride(im.schema, p.Batch.Headers, t.OverrideFor(p.Batch.Headers))
	default:
		return p.Mapping, nil
	}
}

// unmappedWarning names the headers a mapping leaves unused.
func unmappedWarning(m HeaderMapping) string {
	if len(m.Unmapped) == 0 {
		return ""
	}
	return "unmapped columns: " + strings.Join(m.Unmapped, ", ")
}

// Import runs the whole pipeline on raw.
func (im *Importer) Import(ctx context.Context, raw []byte, opts ImportOptions) (*ImportReport, error) {
	p, err := im.Prepare(ctx, raw)
	if err != nil {
		return nil, err
	}
	return im.ImportBatch(ctx, p, opts)
}

// ImportBatch imports a prepared batch from row 1. A SchemaError is
// returned together with a Rejected report; the store is not touched.
func (im *Importer) ImportBatch(ctx context.Context, p *Prepared, opts ImportOptions) (*ImportReport, error) {
	if im.store == nil {
		return nil, eris.New("import: no record store configured")
	}
	start := time.Now()
	importID := uuid.NewString()
	log := im.log.With(zap.String("import_id", importID), zap.String("batch_id", p.ID))

	report := &ImportReport{
		ImportID:  importID,
		Schema:    im.schema.Key,
		Phase:     PhaseFieldsMapped,
		Dialect:   p.Batch.Dialect,
		Warnings:  append([]string{}, p.Warnings...),
		Issues:    append([]StructuralIssue{}, p.Batch.Issues...),
		Errors:    []RowError{},
		Conflicts: []DuplicateConflict{},
		Rows:      []RowResult{},
		StartedAt: start,
	}

	mapping, err := im.ResolveMapping(p, opts)
	report.Mapping = mapping
	if w := unmappedWarning(mapping); w != "" {
		report.Warnings = append(report.Warnings, w)
	}
	if err == nil && len(mapping.MissingMandatory) > 0 {
		err = &SchemaError{Schema: im.schema.Key, Missing: mapping.MissingMandatory, Mapping: mapping}
	}
	if err != nil {
		report.Phase = PhaseRejected
		report.Duration = time.Since(start)
		metrics.RecordImport(im.schema.Key, string(PhaseRejected), report.Duration.Seconds())
		log.Info("import rejected", zap.Error(err))
		return report, err
	}

	source := opts.DefaultSourceTag
	if source == "" {
		source = im.opts.DefaultSource
	}
	validator := NewValidator(im.schema, mapping, source, importID)
	committer := NewCommitter(im.store, im.schema, report, log)
	report.Phase = PhasePerRowProcessing

	rows := p.Batch.Rows()
	chunk := make([]RawRow, 0, im.opts.BatchSize)
	for done := false; !done; {
		chunk = chunk[:0]
		for len(chunk) < im.opts.BatchSize {
			row, err := rows.Next()
			if err == io.EOF {
				done = true
				break
			}
			chunk = append(chunk, row)
		}
		if len(chunk) == 0 {
			break
		}

		outcomes, err := im.validateChunk(ctx, validator, chunk)
		if err != nil {
			im.cancelled(report, err, chunk[0].Index)
			break
		}
		for _, o := range outcomes {
			if err := ctx.Err(); err != nil {
				im.cancelled(report, err, o.Row.Index)
				done = true
				break
			}
			committer.Commit(ctx, o)
		}
	}

	report.Phase = PhaseReported
	report.Duration = time.Since(start)
	im.recordReport(report)

	log.Info("import complete",
		zap.Int("attempted", report.Counts.Attempted),
		zap.Int("succeeded", report.Counts.Succeeded),
		zap.Int("duplicates", report.Counts.SkippedDuplicate),
		zap.Int("conflicting", report.Counts.Conflicting),
		zap.Int("failed", report.Counts.Failed),
		zap.Int("blank", report.Counts.SkippedBlank),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// validateChunk validates rows in parallel; outcomes keep the input order.
func (im *Importer) validateChunk(ctx context.Context, v *Validator, chunk []RawRow) ([]ValidationOutcome, error) {
	out := make([]ValidationOutcome, len(chunk))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.opts.Workers)
	for i := range chunk {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = v.Validate(chunk[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (im *Importer) cancelled(report *ImportReport, err error, row int) {
	report.Cancelled = true
	report.Warnings = append(report.Warnings, fmt.Sprintf("import cancelled before row %d: %v", row, err))
}

func (im *Importer) recordReport(r *ImportReport) {
	outcome := "complete"
	switch {
	case r.Cancelled:
		outcome = "cancelled"
	case r.Counts.Failed > 0 || r.Counts.Conflicting > 0:
		outcome = "partial"
	}
	metrics.RecordImport(r.Schema, outcome, r.Duration.Seconds())
	metrics.RecordRows(r.Schema, string(RowSucceeded), r.Counts.Succeeded)
	metrics.RecordRows(r.Schema, string(RowDuplicate), r.Counts.SkippedDuplicate)
	metrics.RecordRows(r.Schema, string(RowConflicting), r.Counts.Conflicting)
	metrics.RecordRows(r.Schema, string(RowFailed), r.Counts.Failed)
	metrics.RecordRows(r.Schema, string(RowBlank), r.Counts.SkippedBlank)
}
