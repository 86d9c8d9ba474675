package core

// mapper.go maps source headers onto a schema's canonical fields.
//
// Matching runs in three passes over all headers so that a strong match
// anywhere in the file claims its field before a weaker one can:
//  1. exact, case-insensitive name or alias
//  2. normalized (lowercase, letters and digits only)
//  3. fuzzy containment in either direction on whole words; the alias
//     covering the largest share of the header wins
//
// A field is claimed at most once. Headers nobody claims are unmapped,
// which is legal.

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// MatchKind records how a header was matched.
type MatchKind string

const (
	MatchExact      MatchKind = "exact"
	MatchNormalized MatchKind = "normalized"
	MatchFuzzy      MatchKind = "fuzzy"
	MatchOverride   MatchKind = "override"
)

// MappedColumn binds one source column to a canonical field.
type MappedColumn struct {
	Header string         `json:"header"`
	Column int            `json:"column"`
	Field  CanonicalField `json:"field"`
	Match  MatchKind      `json:"match"`
}

// HeaderMapping is the header to field mapping for one batch.
type HeaderMapping struct {
	Columns          []MappedColumn   `json:"columns"`
	Unmapped         []string         `json:"unmapped"`
	MissingMandatory []CanonicalField `json:"missing_mandatory"`
	Confidence       float64          `json:"confidence"`
}

// Column returns the source column position mapped to f.
func (m HeaderMapping) Column(f CanonicalField) (int, bool) {
	for _, c := range m.Columns {
		if c.Field == f {
			return c.Column, true
		}
	}
	return 0, false
}

// Has reports whether f is mapped.
func (m HeaderMapping) Has(f CanonicalField) bool {
	_, ok := m.Column(f)
	return ok
}

// Overrides returns the mapping as a header to field map, the shape
// ApplyOverride and saved templates use.
func (m HeaderMapping) Overrides() map[string]CanonicalField {
	out := make(map[string]CanonicalField, len(m.Columns))
	for _, c := range m.Columns {
		out[c.Header] = c.Field
	}
	return out
}

type aliasEntry struct {
	field  CanonicalField
	words  []string
	length int
}

// genericWords are single-word aliases too common in CRM headers to be
// fuzzy evidence on their own ("Last Contact Date", "Contact Phone").
// They still match in the exact and normalized passes.
var genericWords = map[string]bool{
	"first": true, "last": true, "middle": true, "name": true,
	"contact": true, "type": true, "title": true, "number": true,
	"date": true, "mail": true, "web": true, "site": true,
	"role": true, "stage": true, "channel": true, "region": true,
	"category": true, "code": true, "id": true,
}

// headerWords splits a header into lowercase letter and digit runs.
func headerWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func wordsLen(words []string) int {
	n := 0
	for _, w := range words {
		n += len(w)
	}
	return n
}

// containsRun reports whether needle occurs as a contiguous run in hay.
func containsRun(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j, w := range needle {
			if hay[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// MapHeaders computes the automatic mapping for headers. Placeholder
// positions (see Batch.IsPlaceholder) are passed in skip and never mapped.
func MapHeaders(s *Schema, headers []string, skip func(int) bool) HeaderMapping {
	exact := make(map[string]CanonicalField)
	normalized := make(map[string]CanonicalField)
	var fuzzy []aliasEntry

	for _, f := range s.fields {
		names := append([]string{string(f.Name)}, f.Aliases...)
		for _, a := range names {
			if key := strings.ToLower(strings.TrimSpace(a)); key != "" {
				if _, taken := exact[key]; !taken {
					exact[key] = f.Name
				}
			}
			if key := normalizeHeader(a); key != "" {
				if _, taken := normalized[key]; !taken {
					normalized[key] = f.Name
				}
			}
			words := headerWords(a)
			if len(words) == 0 || (len(words) == 1 && genericWords[words[0]]) {
				continue
			}
			fuzzy = append(fuzzy, aliasEntry{field: f.Name, words: words, length: wordsLen(words)})
		}
	}

	assigned := make(map[int]MappedColumn, len(headers))
	claimed := make(map[CanonicalField]bool)
	eligible := func(i int) bool {
		if _, done := assigned[i]; done {
			return false
		}
		return skip == nil || !skip(i)
	}
	claim := func(i int, f CanonicalField, kind MatchKind) {
		claimed[f] = true
		assigned[i] = MappedColumn{Header: headers[i], Column: i, Field: f, Match: kind}
	}

	for i, h := range headers {
		if !eligible(i) {
			continue
		}
		if f, ok := exact[strings.ToLower(strings.TrimSpace(h))]; ok && !claimed[f] {
			claim(i, f, MatchExact)
		}
	}

	for i, h := range headers {
		if !eligible(i) {
			continue
		}
		if f, ok := normalized[normalizeHeader(h)]; ok && !claimed[f] {
			claim(i, f, MatchNormalized)
		}
	}

	for i, h := range headers {
		if !eligible(i) {
			continue
		}
		hw := headerWords(h)
		hLen := wordsLen(hw)
		if hLen == 0 {
			continue
		}
		var (
			best      CanonicalField
			bestCover float64
			bestLen   int
		)
		for _, e := range fuzzy {
			if claimed[e.field] {
				continue
			}
			if min(hLen, e.length) < s.MinFuzzyLen {
				continue
			}
			if !containsRun(hw, e.words) && !containsRun(e.words, hw) {
				continue
			}
			cover := float64(min(hLen, e.length)) / float64(max(hLen, e.length))
			if cover > bestCover || (cover == bestCover && e.length > bestLen) {
				best, bestCover, bestLen = e.field, cover, e.length
			}
		}
		if bestCover > 0 {
			claim(i, best, MatchFuzzy)
		}
	}

	return buildMapping(s, headers, assigned, skip)
}

// ApplyOverride builds a mapping from a caller-supplied header to field map.
// Headers are matched case-insensitively; an empty field leaves the header
// unmapped. Unknown headers, unknown fields and two headers naming the same
// field are rejected with a SchemaError.
func ApplyOverride(s *Schema, headers []string, override map[string]CanonicalField) (HeaderMapping, error) {
	position := make(map[string]int, len(headers))
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := position[key]; !dup {
			position[key] = i
		}
	}

	keys := make([]string, 0, len(override))
	for k := range override {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var problems []string
	assigned := make(map[int]MappedColumn, len(override))
	owner := make(map[CanonicalField]string)
	for _, header := range keys {
		field := override[header]
		pos, ok := position[strings.ToLower(strings.TrimSpace(header))]
		if !ok {
			problems = append(problems, fmt.Sprintf("mapping names unknown header %q", header))
			continue
		}
		if field == "" {
			continue
		}
		if _, ok := s.Field(field); !ok {
			problems = append(problems, fmt.Sprintf("mapping names unknown field %q", field))
			continue
		}
		if prev, taken := owner[field]; taken {
			problems = append(problems, fmt.Sprintf("headers %q and %q both map to %s", prev, header, field))
			continue
		}
		owner[field] = header
		assigned[pos] = MappedColumn{Header: headers[pos], Column: pos, Field: field, Match: MatchOverride}
	}

	m := buildMapping(s, headers, assigned, nil)
	if len(problems) > 0 {
		return m, &SchemaError{Schema: s.Key, Problems: problems, Mapping: m}
	}
	return m, nil
}

func buildMapping(s *Schema, headers []string, assigned map[int]MappedColumn, skip func(int) bool) HeaderMapping {
	m := HeaderMapping{
		Columns:  make([]MappedColumn, 0, len(assigned)),
		Unmapped: []string{},
	}
	for i, h := range headers {
		if c, ok := assigned[i]; ok {
			m.Columns = append(m.Columns, c)
			continue
		}
		if skip != nil && skip(i) {
			continue
		}
		m.Unmapped = append(m.Unmapped, h)
	}
	if len(headers) > 0 {
		m.Confidence = float64(len(m.Columns)) / float64(len(headers))
	}
	m.MissingMandatory = missingMandatory(s, m)
	return m
}

// missingMandatory lists mandatory fields with no mapped column and no
// mapped SatisfiedBy field.
func missingMandatory(s *Schema, m HeaderMapping) []CanonicalField {
	missing := []CanonicalField{}
	for _, f := range s.fields {
		if !f.Mandatory || m.Has(f.Name) {
			continue
		}
		satisfied := false
		for _, alt := range f.SatisfiedBy {
			if m.Has(alt) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			missing = append(missing, f.Name)
		}
	}
	return missing
}
