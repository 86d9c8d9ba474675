package core

// templates.go loads saved header mappings ("templates") from YAML and
// suggests the ones whose headers match an upload.
//
//	templates:
//	  - name: hubspot-export
//	    schema: customer
//	    mapping:
//	      "First Name": given_name
//	      "Email": email

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// TemplateMatchThreshold is the minimum header overlap for a suggestion.
const TemplateMatchThreshold = 0.7

// MappingTemplate is a named, saved header mapping.
type MappingTemplate struct {
	Name    string                    `yaml:"name" json:"name"`
	Schema  string                    `yaml:"schema" json:"schema"`
	Headers []string                  `yaml:"headers,omitempty" json:"headers"`
	Mapping map[string]CanonicalField `yaml:"mapping" json:"mapping"`
}

// TemplateMatch is a template suggested for a batch.
type TemplateMatch struct {
	Template   MappingTemplate `json:"template"`
	MatchScore float64         `json:"match_score"`
}

// TemplateSet holds the loaded templates.
type TemplateSet struct {
	templates []MappingTemplate
}

// LoadTemplates reads a template file. A missing file yields an empty set.
func LoadTemplates(path string) (*TemplateSet, error) {
	if path == "" {
		return &TemplateSet{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &TemplateSet{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "templates: read %s", path)
	}
	return ParseTemplates(data)
}

// ParseTemplates decodes a YAML template document.
func ParseTemplates(data []byte) (*TemplateSet, error) {
	var doc struct {
		Templates []MappingTemplate `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "templates: parse")
	}

	seen := make(map[string]bool, len(doc.Templates))
	for i, t := range doc.Templates {
		if t.Name == "" {
			return nil, eris.Errorf("templates: entry %d has no name", i+1)
		}
		if seen[t.Name] {
			return nil, eris.Errorf("templates: %s defined twice", t.Name)
		}
		seen[t.Name] = true
		if len(t.Headers) == 0 {
			for h := range t.Mapping {
				t.Headers = append(t.Headers, h)
			}
			sort.Strings(t.Headers)
			doc.Templates[i] = t
		}
	}
	return &TemplateSet{templates: doc.Templates}, nil
}

// Len returns the number of templates.
func (ts *TemplateSet) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.templates)
}

// Get returns a template by name.
func (ts *TemplateSet) Get(name string) (MappingTemplate, bool) {
	if ts == nil {
		return MappingTemplate{}, false
	}
	for _, t := range ts.templates {
		if t.Name == name {
			return t, true
		}
	}
	return MappingTemplate{}, false
}

// List returns the templates usable with schemaKey, in file order.
// Templates without a schema apply to every schema.
func (ts *TemplateSet) List(schemaKey string) []MappingTemplate {
	out := []MappingTemplate{}
	if ts == nil {
		return out
	}
	for _, t := range ts.templates {
		if t.Schema == "" || t.Schema == schemaKey {
			out = append(out, t)
		}
	}
	return out
}

// Match returns the templates for schemaKey whose headers overlap headers
// by at least TemplateMatchThreshold, best first.
func (ts *TemplateSet) Match(schemaKey string, headers []string) []TemplateMatch {
	if ts == nil {
		return nil
	}
	var matches []TemplateMatch
	for _, t := range ts.templates {
		if t.Schema != "" && t.Schema != schemaKey {
			continue
		}
		score := matchTemplateHeaders(headers, t.Headers)
		if score >= TemplateMatchThreshold {
			matches = append(matches, TemplateMatch{Template: t, MatchScore: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches
}

// OverrideFor restricts a template's mapping to the headers present in the
// batch, ready for ApplyOverride.
func (t MappingTemplate) OverrideFor(headers []string) map[string]CanonicalField {
	present := make(map[string]string, len(headers))
	for _, h := range headers {
		present[strings.ToLower(strings.TrimSpace(h))] = h
	}
	out := make(map[string]CanonicalField, len(t.Mapping))
	for h, f := range t.Mapping {
		if actual, ok := present[strings.ToLower(strings.TrimSpace(h))]; ok {
			out[actual] = f
		}
	}
	return out
}

// matchTemplateHeaders calculates how well CSV headers match template headers.
func matchTemplateHeaders(csvHeaders, templateHeaders []string) float64 {
	if len(templateHeaders) == 0 {
		return 0
	}

	csvSet := make(map[string]bool)
	for _, h := range csvHeaders {
		csvSet[strings.ToLower(strings.TrimSpace(h))] = true
	}

	matched := 0
	for _, h := range templateHeaders {
		if csvSet[strings.ToLower(strings.TrimSpace(h))] {
			matched++
		}
	}

	return float64(matched) / float64(len(templateHeaders))
}
