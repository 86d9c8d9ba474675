package core

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultMinFuzzyLen is the shortest normalized token the fuzzy matcher accepts.
const DefaultMinFuzzyLen = 4

// Schema is the immutable target definition an import maps onto. Build one
// with NewSchema; the pipeline never reads schema data from package state.
type Schema struct {
	Key   string
	Label string

	fields []FieldSpec
	index  map[CanonicalField]int

	// Identifier is the unique primary key field (first duplicate lookup).
	Identifier CanonicalField
	// SecondaryEmail receives the second address of a multi-address cell.
	SecondaryEmail CanonicalField
	// Handles are secondary lookup keys, matched case-insensitively in order.
	Handles []CanonicalField
	// Names describes the name parts; Given+Family is the last-resort lookup.
	Names NameFields
	// SourceField receives the import's default source tag when empty.
	SourceField CanonicalField

	MinFuzzyLen int
}

// SchemaOptions carries the non-field parts of a schema definition.
type SchemaOptions struct {
	Identifier     CanonicalField
	SecondaryEmail CanonicalField
	Handles        []CanonicalField
	Names          NameFields
	SourceField    CanonicalField
	MinFuzzyLen    int
}

// NewSchema validates a field list and returns an immutable Schema.
func NewSchema(key, label string, fields []FieldSpec, opts SchemaOptions) (*Schema, error) {
	if key == "" {
		return nil, eris.New("schema: key is required")
	}
	if len(fields) == 0 {
		return nil, eris.Errorf("schema %s: no fields", key)
	}

	s := &Schema{
		Key:            key,
		Label:          label,
		fields:         make([]FieldSpec, len(fields)),
		index:          make(map[CanonicalField]int, len(fields)),
		Identifier:     opts.Identifier,
		SecondaryEmail: opts.SecondaryEmail,
		Handles:        append([]CanonicalField(nil), opts.Handles...),
		Names:          opts.Names,
		SourceField:    opts.SourceField,
		MinFuzzyLen:    opts.MinFuzzyLen,
	}
	if s.MinFuzzyLen <= 0 {
		s.MinFuzzyLen = DefaultMinFuzzyLen
	}

	var problems []string
	for i, f := range fields {
		if f.Name == "" {
			problems = append(problems, fmt.Sprintf("field %d has no name", i+1))
			continue
		}
		if !validFieldName(f.Name) {
			problems = append(problems, fmt.Sprintf("field name %q must use lowercase letters, digits and underscores", f.Name))
			continue
		}
		if _, dup := s.index[f.Name]; dup {
			problems = append(problems, fmt.Sprintf("field %s declared twice", f.Name))
			continue
		}
		if f.Type == FieldEnum && len(f.Choices) == 0 {
			problems = append(problems, fmt.Sprintf("enum field %s has no choices", f.Name))
		}
		f.Aliases = append([]string(nil), f.Aliases...)
		f.Choices = append([]string(nil), f.Choices...)
		f.SatisfiedBy = append([]CanonicalField(nil), f.SatisfiedBy...)
		if f.ValueAliases != nil {
			va := make(map[string]string, len(f.ValueAliases))
			for k, v := range f.ValueAliases {
				va[normalizeChoice(k)] = v
			}
			f.ValueAliases = va
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}

	refs := []CanonicalField{s.Identifier, s.SecondaryEmail, s.SourceField,
		s.Names.Full, s.Names.Title, s.Names.Given, s.Names.Middle, s.Names.Family, s.Names.Suffix}
	refs = append(refs, s.Handles...)
	for _, f := range fields {
		refs = append(refs, f.SatisfiedBy...)
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := s.index[ref]; !ok {
			problems = append(problems, fmt.Sprintf("unknown field %s referenced", ref))
		}
	}

	if len(problems) > 0 {
		return nil, eris.Errorf("schema %s: %s", key, strings.Join(problems, "; "))
	}
	return s, nil
}

// Fields returns a copy of the field declarations in registry order.
func (s *Schema) Fields() []FieldSpec {
	return append([]FieldSpec(nil), s.fields...)
}

// Field looks up a field declaration by name.
func (s *Schema) Field(name CanonicalField) (FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Mandatory returns the mandatory fields in registry order.
func (s *Schema) Mandatory() []CanonicalField {
	var out []CanonicalField
	for _, f := range s.fields {
		if f.Mandatory {
			out = append(out, f.Name)
		}
	}
	return out
}

func validFieldName(name CanonicalField) bool {
	for _, r := range name {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' {
			return false
		}
	}
	return name != ""
}
