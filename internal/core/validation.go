package core

// validation.go turns a RawRow into a ValidationOutcome.
//
// Every mapped cell is cleaned and coerced by its field's declared type.
// Errors are accumulated rather than returned on the first failure so an
// operator can fix a file in one pass. A row whose mapped cells are all
// empty is Blank and never reaches the store.

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validator validates rows of one batch against a schema and mapping.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	schema        *Schema
	mapping       HeaderMapping
	defaultSource string
	importID      string
}

// NewValidator creates a validator for one batch.
func NewValidator(s *Schema, m HeaderMapping, defaultSource, importID string) *Validator {
	return &Validator{
		schema:        s,
		mapping:       m,
		defaultSource: strings.TrimSpace(defaultSource),
		importID:      importID,
	}
}

// Validate checks one row.
func (v *Validator) Validate(row RawRow) ValidationOutcome {
	out := ValidationOutcome{Row: row}

	if row.Malformed != "" {
		out.Kind = OutcomeInvalid
		out.Errors = []FieldError{{Message: "malformed row: " + row.Malformed}}
		return out
	}

	cells := make(map[CanonicalField]string, len(v.mapping.Columns))
	headers := make(map[CanonicalField]string, len(v.mapping.Columns))
	blank := true
	for _, c := range v.mapping.Columns {
		var raw string
		if c.Column < len(row.Values) {
			raw = CleanCell(row.Values[c.Column])
		}
		cells[c.Field] = raw
		headers[c.Field] = c.Header
		if raw != "" {
			blank = false
		}
	}
	if blank {
		out.Kind = OutcomeBlank
		return out
	}

	values := make(map[CanonicalField]string, len(v.schema.fields))
	var mapped []CanonicalField
	failed := make(map[CanonicalField]bool)
	var extraEmail string

	for _, spec := range v.schema.fields {
		raw, ok := cells[spec.Name]
		if !ok || raw == "" {
			continue
		}

		var (
			value string
			msg   string
		)
		if spec.Type == FieldEmail {
			var extra []string
			value, extra, msg = coerceEmails(raw)
			if msg == "" && len(extra) > 0 {
				extraEmail = v.routeExtraEmail(spec.Name, extra, &out)
			}
		} else {
			value, msg = coerce(raw, spec)
		}

		if msg != "" {
			failed[spec.Name] = true
			out.Errors = append(out.Errors, FieldError{
				Field:   spec.Name,
				Column:  headers[spec.Name],
				Value:   raw,
				Message: msg,
			})
			continue
		}
		if spec.Normalizer != nil && value != "" {
			value = spec.Normalizer(value)
		}
		if value != "" {
			values[spec.Name] = value
			mapped = append(mapped, spec.Name)
		}
	}

	if sec := v.schema.SecondaryEmail; extraEmail != "" && values[sec] == "" && !failed[sec] {
		values[sec] = extraEmail
		mapped = append(mapped, sec)
	}

	mapped = append(mapped, v.splitFullName(values)...)

	for _, spec := range v.schema.fields {
		if values[spec.Name] == "" && spec.Default != "" {
			values[spec.Name] = spec.Default
		}
	}
	if sf := v.schema.SourceField; sf != "" && values[sf] == "" && v.defaultSource != "" {
		values[sf] = v.defaultSource
	}

	for _, spec := range v.schema.fields {
		if !spec.Mandatory || values[spec.Name] != "" || failed[spec.Name] {
			continue
		}
		if v.satisfied(spec, values) {
			continue
		}
		out.Errors = append(out.Errors, FieldError{
			Field:   spec.Name,
			Column:  headers[spec.Name],
			Message: "required field is empty",
		})
	}

	if len(out.Errors) > 0 {
		out.Kind = OutcomeInvalid
		return out
	}

	out.Kind = OutcomeValid
	out.Record = NewNormalizedRecord(values, mapped, Provenance{
		ImportID: v.importID,
		Row:      row.Index,
		Line:     row.Line,
	})
	return out
}

// routeExtraEmail decides what happens to the addresses after the first in
// a multi-address cell and records a warning. It returns the address to
// place in the secondary email field, if any.
func (v *Validator) routeExtraEmail(field CanonicalField, extra []string, out *ValidationOutcome) string {
	sec := v.schema.SecondaryEmail
	if sec == "" || sec == field {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"row %d: %s held several addresses; kept the first, dropped %s",
			out.Row.Index, field, strings.Join(extra, ", ")))
		return ""
	}
	out.Warnings = append(out.Warnings, fmt.Sprintf(
		"row %d: %s held several addresses; using %s as %s when empty",
		out.Row.Index, field, extra[0], sec))
	return extra[0]
}

// splitFullName fills empty name parts from the full-name field and
// returns the fields it set.
func (v *Validator) splitFullName(values map[CanonicalField]string) []CanonicalField {
	n := v.schema.Names
	full := values[n.Full]
	if n.Full == "" || full == "" {
		return nil
	}
	if (n.Given != "" && values[n.Given] != "") || (n.Family != "" && values[n.Family] != "") {
		return nil
	}

	parts := SplitFullName(full)
	var set []CanonicalField
	assign := func(f CanonicalField, val string) {
		if f == "" || val == "" || values[f] != "" {
			return
		}
		values[f] = CleanName(val)
		set = append(set, f)
	}
	assign(n.Title, parts.Title)
	assign(n.Given, parts.Given)
	assign(n.Middle, parts.Middle)
	assign(n.Family, parts.Family)
	assign(n.Suffix, parts.Suffix)
	return set
}

func (v *Validator) satisfied(spec FieldSpec, values map[CanonicalField]string) bool {
	for _, alt := range spec.SatisfiedBy {
		if values[alt] != "" {
			return true
		}
	}
	return false
}

// coerce converts a cleaned, non-empty cell to its normalized form. A
// non-empty message means the value is invalid.
func coerce(raw string, spec FieldSpec) (string, string) {
	switch spec.Type {
	case FieldText:
		return CollapseSpaces(raw), ""

	case FieldName:
		return CleanName(raw), ""

	case FieldURL:
		u := DefaultURLScheme(raw)
		if err := validate.Var(u, "url"); err != nil {
			return "", "invalid URL"
		}
		return u, ""

	case FieldPhone:
		p, ok := NormalizePhone(raw)
		if !ok {
			return "", fmt.Sprintf("phone number must have %d to %d digits", MinPhoneDigits, MaxPhoneDigits)
		}
		return p, ""

	case FieldEnum:
		return resolveChoice(raw, spec)

	case FieldBool:
		b, ok := ParseBool(raw)
		if !ok {
			return "", "must be yes/no, true/false, 1/0 or on/off"
		}
		return FormatBool(b), ""

	case FieldHandle:
		return StripHandle(raw), ""

	case FieldCountry:
		return NormalizeCountry(raw), ""

	case FieldEmail:
		value, _, msg := coerceEmails(raw)
		return value, msg

	default:
		return CollapseSpaces(raw), ""
	}
}

// coerceEmails returns the first valid address in raw and any further valid
// addresses. A cell with no valid address is an error.
func coerceEmails(raw string) (string, []string, string) {
	var valid []string
	for _, addr := range SplitEmails(raw) {
		if validate.Var(addr, "email") == nil {
			valid = append(valid, addr)
		}
	}
	if len(valid) == 0 {
		return "", nil, "invalid email address"
	}
	return valid[0], valid[1:], ""
}

func resolveChoice(raw string, spec FieldSpec) (string, string) {
	key := normalizeChoice(raw)
	for _, c := range spec.Choices {
		if normalizeChoice(c) == key {
			return c, ""
		}
	}
	if c, ok := spec.ValueAliases[key]; ok {
		return c, ""
	}
	return "", fmt.Sprintf("value must be one of: %s", strings.Join(spec.Choices, ", "))
}
