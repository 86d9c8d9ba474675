package core

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrNotFound is returned by RecordStore.FindBy when nothing matches.
	ErrNotFound = eris.New("record not found")

	// ErrUniqueViolation is returned by RecordStore.Create when the
	// identifier is already taken.
	ErrUniqueViolation = eris.New("unique constraint violation on identifier")

	// ErrEmptyInput is returned when the upload has no bytes at all.
	ErrEmptyInput = eris.New("empty file")
)

// DecodeError means no candidate encoding could decode the input.
// It aborts the batch.
type DecodeError struct {
	Tried []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid encoding: could not decode input as any of %s", strings.Join(e.Tried, ", "))
}

// SchemaError means the batch cannot satisfy the schema's structure, either
// because mandatory fields have no column or because a mapping override is
// invalid. It aborts the batch before any record is written.
type SchemaError struct {
	Schema   string
	Missing  []CanonicalField
	Problems []string
	Mapping  HeaderMapping
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		names := make([]string, len(e.Missing))
		for i, f := range e.Missing {
			names[i] = string(f)
		}
		parts = append(parts, "missing mandatory fields: "+strings.Join(names, ", "))
	}
	parts = append(parts, e.Problems...)
	if len(parts) == 0 {
		return "schema error"
	}
	return "schema error: " + strings.Join(parts, "; ")
}

// FieldError is one failed field coercion within a row.
type FieldError struct {
	Field   CanonicalField `json:"field"`
	Column  string         `json:"column,omitempty"`
	Value   string         `json:"value,omitempty"`
	Message string         `json:"message"`
}

func (e FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// DuplicateConflict records a row that matched an existing record with
// different values. The row is skipped; the existing record is untouched.
type DuplicateConflict struct {
	Row        int              `json:"row"`
	ExistingID string           `json:"existing_id"`
	MatchedBy  CanonicalField   `json:"matched_by"`
	Fields     []CanonicalField `json:"fields"`
}

func (c DuplicateConflict) Error() string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("row %d matches existing record %s by %s but differs in: %s",
		c.Row, c.ExistingID, c.MatchedBy, strings.Join(names, ", "))
}

// PersistenceError is a store failure for one row.
type PersistenceError struct {
	Row int
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// joinFieldErrors renders field errors as a single message.
func joinFieldErrors(errs []FieldError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
