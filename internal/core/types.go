package core

import (
	"encoding/json"
	"sort"
	"time"
)

// FieldType is the declared value type of a canonical field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldName
	FieldEmail
	FieldURL
	FieldPhone
	FieldEnum
	FieldBool
	FieldHandle
	FieldCountry
)

var fieldTypeNames = map[FieldType]string{
	FieldText:    "text",
	FieldName:    "name",
	FieldEmail:   "email",
	FieldURL:     "url",
	FieldPhone:   "phone",
	FieldEnum:    "enum",
	FieldBool:    "bool",
	FieldHandle:  "handle",
	FieldCountry: "country",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return "value"
}

// MarshalText lets field types appear by name in JSON and YAML.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseFieldType converts a type name ("email", "phone", ...) to a FieldType.
func ParseFieldType(s string) (FieldType, bool) {
	for t, name := range fieldTypeNames {
		if name == s {
			return t, true
		}
	}
	return FieldText, false
}

// CanonicalField names one attribute of the target schema.
type CanonicalField string

// FieldSpec declares a canonical field: how it is recognised in headers
// and how its values are normalized.
type FieldSpec struct {
	Name      CanonicalField
	Label     string
	Type      FieldType
	Mandatory bool

	// Aliases are alternative header spellings. Name itself always matches.
	Aliases []string

	// Choices is the closed value set for FieldEnum. ValueAliases maps
	// normalized input spellings onto a choice.
	Choices      []string
	ValueAliases map[string]string

	// Default is applied when the row leaves the field empty.
	Default string

	// SatisfiedBy lists fields whose mapping also satisfies this field's
	// mandatory requirement at the header level.
	SatisfiedBy []CanonicalField

	// Normalizer runs after type coercion for field-specific cleanup.
	Normalizer func(string) string `json:"-"`
}

// NameFields identifies the schema fields that make up a person's name.
type NameFields struct {
	Full   CanonicalField `json:"full,omitempty" yaml:"full"`
	Title  CanonicalField `json:"title,omitempty" yaml:"title"`
	Given  CanonicalField `json:"given,omitempty" yaml:"given"`
	Middle CanonicalField `json:"middle,omitempty" yaml:"middle"`
	Family CanonicalField `json:"family,omitempty" yaml:"family"`
	Suffix CanonicalField `json:"suffix,omitempty" yaml:"suffix"`
}

// RawRow is one data line of the input. Index is 1-based over data rows,
// Line is the physical line in the decoded text.
type RawRow struct {
	Index  int
	Line   int
	Values []string
	// Malformed holds the parser's complaint when the line could not be
	// split into fields.
	Malformed string
}

// Provenance records which input row produced a record.
type Provenance struct {
	ImportID string `json:"import_id,omitempty"`
	Row      int    `json:"row"`
	Line     int    `json:"line"`
}

// NormalizedRecord holds validated values keyed by canonical field.
// It is never modified after the validator builds it.
type NormalizedRecord struct {
	values     map[CanonicalField]string
	mapped     map[CanonicalField]bool
	Provenance Provenance
}

// NewNormalizedRecord copies values into a record. Fields listed in mapped
// are the ones whose values came from input columns rather than defaults.
func NewNormalizedRecord(values map[CanonicalField]string, mapped []CanonicalField, prov Provenance) NormalizedRecord {
	rec := NormalizedRecord{
		values:     make(map[CanonicalField]string, len(values)),
		mapped:     make(map[CanonicalField]bool, len(mapped)),
		Provenance: prov,
	}
	for k, v := range values {
		if v != "" {
			rec.values[k] = v
		}
	}
	for _, f := range mapped {
		rec.mapped[f] = true
	}
	return rec
}

// Get returns the value of a field, or "" when absent.
func (r NormalizedRecord) Get(f CanonicalField) string {
	return r.values[f]
}

// Mapped reports whether the field's value came from an input column.
func (r NormalizedRecord) Mapped(f CanonicalField) bool {
	return r.mapped[f]
}

// Fields returns the populated fields in sorted order.
func (r NormalizedRecord) Fields() []CanonicalField {
	fields := make([]CanonicalField, 0, len(r.values))
	for f := range r.values {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Values returns a copy of the record's values.
func (r NormalizedRecord) Values() map[CanonicalField]string {
	out := make(map[CanonicalField]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r NormalizedRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Provenance Provenance                `json:"provenance"`
		Values     map[CanonicalField]string `json:"values"`
	}{r.Provenance, r.values})
}

// Record is a stored customer record.
type Record struct {
	ID        string                    `json:"id"`
	Fields    map[CanonicalField]string `json:"fields"`
	CreatedAt time.Time                 `json:"created_at"`
}

// OutcomeKind tags a ValidationOutcome.
type OutcomeKind int

const (
	OutcomeValid OutcomeKind = iota
	OutcomeInvalid
	OutcomeBlank
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeValid:
		return "valid"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeBlank:
		return "blank"
	default:
		return "unknown"
	}
}

// ValidationOutcome is the result of validating one row: a record when
// Kind is OutcomeValid, field errors when OutcomeInvalid, nothing when blank.
type ValidationOutcome struct {
	Kind     OutcomeKind
	Row      RawRow
	Record   NormalizedRecord
	Errors   []FieldError
	Warnings []string
}

// VerdictKind tags a DuplicateVerdict.
type VerdictKind int

const (
	VerdictNew VerdictKind = iota
	VerdictExactDuplicate
	VerdictConflicting
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictNew:
		return "new"
	case VerdictExactDuplicate:
		return "duplicate"
	case VerdictConflicting:
		return "conflicting"
	default:
		return "unknown"
	}
}

// DuplicateVerdict classifies a record against the store.
type DuplicateVerdict struct {
	Kind       VerdictKind      `json:"kind"`
	ExistingID string           `json:"existing_id,omitempty"`
	MatchedBy  CanonicalField   `json:"matched_by,omitempty"`
	Differing  []CanonicalField `json:"differing,omitempty"`
	WithinFile bool             `json:"within_file,omitempty"`
}

func (k VerdictKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Phase is a pipeline state.
type Phase string

const (
	PhaseReceived         Phase = "received"
	PhaseDialectDetected  Phase = "dialect_detected"
	PhaseStructureParsed  Phase = "structure_parsed"
	PhaseFieldsMapped     Phase = "fields_mapped"
	PhaseRejected         Phase = "rejected"
	PhasePerRowProcessing Phase = "processing"
	PhaseReported         Phase = "reported"
)

// RowStatus is what happened to one row during import.
type RowStatus string

const (
	RowSucceeded   RowStatus = "succeeded"
	RowFailed      RowStatus = "failed"
	RowDuplicate   RowStatus = "duplicate"
	RowConflicting RowStatus = "conflicting"
	RowBlank       RowStatus = "blank"
)

// RowErrorKind separates the reasons a row did not commit.
type RowErrorKind string

const (
	RowErrorValidation  RowErrorKind = "validation"
	RowErrorPersistence RowErrorKind = "persistence"
)

// RowResult is the per-row line of an ImportReport.
type RowResult struct {
	Row      int       `json:"row"`
	Line     int       `json:"line"`
	Status   RowStatus `json:"status"`
	RecordID string    `json:"record_id,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// RowError describes a failed row.
type RowError struct {
	Row     int          `json:"row"`
	Line    int          `json:"line"`
	Kind    RowErrorKind `json:"kind"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// Counts are the running totals of an import. Blank rows are not attempted:
// Attempted == Succeeded + SkippedDuplicate + Conflicting + Failed.
type Counts struct {
	Attempted        int `json:"attempted"`
	Succeeded        int `json:"succeeded"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	Conflicting      int `json:"conflicting"`
	Failed           int `json:"failed"`
	SkippedBlank     int `json:"skipped_blank"`
}

// ImportReport is the complete account of one import.
type ImportReport struct {
	ImportID  string              `json:"import_id"`
	Schema    string              `json:"schema"`
	Phase     Phase               `json:"phase"`
	Dialect   Dialect             `json:"dialect"`
	Mapping   HeaderMapping       `json:"mapping"`
	Counts    Counts              `json:"counts"`
	Warnings  []string            `json:"warnings"`
	Issues    []StructuralIssue   `json:"issues"`
	Errors    []RowError          `json:"errors"`
	Conflicts []DuplicateConflict `json:"conflicts"`
	Rows      []RowResult         `json:"rows"`
	Cancelled bool                `json:"cancelled,omitempty"`
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration"`
}
