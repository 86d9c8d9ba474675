package core

// commit.go is the single-writer stage of an import.
//
// Outcomes arrive in row order. Each valid row is resolved against the
// store and, when new, created on its own; a failure on one row never
// touches the rows before it or stops the rows after it.

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Committer applies validation outcomes to the store and accumulates the
// report. Not safe for concurrent use.
type Committer struct {
	store    RecordStore
	resolver *Resolver
	report   *ImportReport
	log      *zap.Logger
}

// NewCommitter creates a committer that writes into report.
func NewCommitter(store RecordStore, schema *Schema, report *ImportReport, log *zap.Logger) *Committer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Committer{
		store:    store,
		resolver: NewResolver(store, schema),
		report:   report,
		log:      log,
	}
}

// Commit processes one outcome.
func (c *Committer) Commit(ctx context.Context, o ValidationOutcome) {
	r := c.report
	r.Warnings = append(r.Warnings, o.Warnings...)

	switch o.Kind {
	case OutcomeBlank:
		r.Counts.SkippedBlank++
		c.row(o.Row, RowBlank, "", "blank row skipped")
		return

	case OutcomeInvalid:
		r.Counts.Attempted++
		c.fail(o.Row, RowErrorValidation, joinFieldErrors(o.Errors), o.Errors)
		return
	}

	r.Counts.Attempted++

	verdict, err := c.resolver.Resolve(ctx, o.Record)
	if err != nil {
		c.persistenceFailure(o.Row, err)
		return
	}

	switch verdict.Kind {
	case VerdictExactDuplicate:
		r.Counts.SkippedDuplicate++
		msg := fmt.Sprintf("duplicate of %s (matched by %s)", verdict.ExistingID, verdict.MatchedBy)
		if verdict.WithinFile {
			msg = fmt.Sprintf("duplicate within file of %s (matched by %s)", verdict.ExistingID, verdict.MatchedBy)
		}
		c.row(o.Row, RowDuplicate, verdict.ExistingID, msg)

	case VerdictConflicting:
		r.Counts.Conflicting++
		conflict := DuplicateConflict{
			Row:        o.Row.Index,
			ExistingID: verdict.ExistingID,
			MatchedBy:  verdict.MatchedBy,
			Fields:     verdict.Differing,
		}
		r.Conflicts = append(r.Conflicts, conflict)
		msg := conflict.Error()
		if verdict.WithinFile {
			msg += " (duplicate within file)"
		}
		r.Warnings = append(r.Warnings, msg)
		c.row(o.Row, RowConflicting, verdict.ExistingID, msg)

	default:
		created, err := c.store.Create(ctx, o.Record)
		if err != nil {
			c.persistenceFailure(o.Row, err)
			return
		}
		c.resolver.MarkCreated(created.ID)
		r.Counts.Succeeded++
		c.row(o.Row, RowSucceeded, created.ID, "")
	}
}

func (c *Committer) persistenceFailure(row RawRow, err error) {
	msg := err.Error()
	if eris.Is(err, ErrUniqueViolation) {
		msg = "identifier already exists (written by another import)"
	}
	c.log.Warn("row not persisted",
		zap.Int("line", row.Line),
		zap.Error(&PersistenceError{Row: row.Index, Err: err}),
	)
	c.fail(row, RowErrorPersistence, msg, nil)
}

func (c *Committer) fail(row RawRow, kind RowErrorKind, msg string, fields []FieldError) {
	c.report.Counts.Failed++
	c.report.Errors = append(c.report.Errors, RowError{
		Row:     row.Index,
		Line:    row.Line,
		Kind:    kind,
		Message: msg,
		Fields:  fields,
	})
	c.row(row, RowFailed, "", msg)
}

func (c *Committer) row(row RawRow, status RowStatus, id, msg string) {
	c.report.Rows = append(c.report.Rows, RowResult{
		Row:      row.Index,
		Line:     row.Line,
		Status:   status,
		RecordID: id,
		Message:  msg,
	})
}
