package core

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

type yamlField struct {
	Name         string            `yaml:"name"`
	Label        string            `yaml:"label"`
	Type         string            `yaml:"type"`
	Mandatory    bool              `yaml:"mandatory"`
	Aliases      []string          `yaml:"aliases"`
	Choices      []string          `yaml:"choices"`
	ValueAliases map[string]string `yaml:"value_aliases"`
	Default      string            `yaml:"default"`
	SatisfiedBy  []string          `yaml:"satisfied_by"`
}

type yamlSchema struct {
	Key            string      `yaml:"key"`
	Label          string      `yaml:"label"`
	Identifier     string      `yaml:"identifier"`
	SecondaryEmail string      `yaml:"secondary_email"`
	Handles        []string    `yaml:"handles"`
	Names          NameFields  `yaml:"names"`
	SourceField    string      `yaml:"source_field"`
	MinFuzzyLen    int         `yaml:"min_fuzzy_len"`
	Fields         []yamlField `yaml:"fields"`
}

// LoadSchemaFile reads a schema definition from a YAML file.
func LoadSchemaFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}
	return ParseSchemaYAML(data)
}

// ParseSchemaYAML builds a Schema from its YAML definition.
//
//	key: partner
//	identifier: email
//	fields:
//	  - name: email
//	    type: email
//	    mandatory: true
//	    aliases: [mail, e-mail]
func ParseSchemaYAML(data []byte) (*Schema, error) {
	var doc yamlSchema
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "schema: parse yaml")
	}

	fields := make([]FieldSpec, 0, len(doc.Fields))
	for _, f := range doc.Fields {
		ft := FieldText
		if f.Type != "" {
			var ok bool
			if ft, ok = ParseFieldType(f.Type); !ok {
				return nil, eris.Errorf("schema %s: field %s has unknown type %q", doc.Key, f.Name, f.Type)
			}
		}
		fields = append(fields, FieldSpec{
			Name:         CanonicalField(f.Name),
			Label:        f.Label,
			Type:         ft,
			Mandatory:    f.Mandatory,
			Aliases:      f.Aliases,
			Choices:      f.Choices,
			ValueAliases: f.ValueAliases,
			Default:      f.Default,
			SatisfiedBy:  toFields(f.SatisfiedBy),
		})
	}

	return NewSchema(doc.Key, doc.Label, fields, SchemaOptions{
		Identifier:     CanonicalField(doc.Identifier),
		SecondaryEmail: CanonicalField(doc.SecondaryEmail),
		Handles:        toFields(doc.Handles),
		Names:          doc.Names,
		SourceField:    CanonicalField(doc.SourceField),
		MinFuzzyLen:    doc.MinFuzzyLen,
	})
}

func toFields(names []string) []CanonicalField {
	out := make([]CanonicalField, len(names))
	for i, n := range names {
		out[i] = CanonicalField(n)
	}
	return out
}
