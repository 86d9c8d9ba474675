package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templatesYAML = `
templates:
  - name: hubspot
    schema: contact
    mapping:
      First Name: given_name
      Last Name: family_name
      Email: email
  - name: legacy-crm
    headers: [Who, Where, Notes]
    mapping:
      Who: full_name
      Where: email
  - name: partner-only
    schema: partner
    mapping:
      Email: email
`

func TestParseTemplates(t *testing.T) {
	ts, err := ParseTemplates([]byte(templatesYAML))
	require.NoError(t, err)
	assert.Equal(t, 3, ts.Len())

	hs, ok := ts.Get("hubspot")
	require.True(t, ok)
	assert.Equal(t, "contact", hs.Schema)
	assert.Equal(t, []string{"Email", "First Name", "Last Name"}, hs.Headers, "headers default to the sorted mapping keys")

	legacy, ok := ts.Get("legacy-crm")
	require.True(t, ok)
	assert.Equal(t, []string{"Who", "Where", "Notes"}, legacy.Headers)

	_, ok = ts.Get("nope")
	assert.False(t, ok)
}

func TestParseTemplatesErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"invalid yaml", "templates: [", "templates: parse"},
		{"missing name", "templates:\n  - mapping: {a: b}\n", "has no name"},
		{"duplicate name", "templates:\n  - name: a\n  - name: a\n", "defined twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplates([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestTemplateMatch(t *testing.T) {
	ts, err := ParseTemplates([]byte(templatesYAML))
	require.NoError(t, err)

	matches := ts.Match("contact", []string{"first name", "Last Name", "Email", "Phone"})
	require.Len(t, matches, 1)
	assert.Equal(t, "hubspot", matches[0].Template.Name)
	assert.Equal(t, 1.0, matches[0].MatchScore)

	// Two of three headers is below the threshold.
	assert.Empty(t, ts.Match("contact", []string{"Who", "Where"}))
	assert.Len(t, ts.Match("contact", []string{"Who", "Where", "Notes"}), 1)

	// Templates bound to another schema are never suggested.
	assert.Empty(t, ts.Match("contact", []string{"Email"}))
	assert.Len(t, ts.Match("partner", []string{"Email"}), 1)
}

func TestTemplateOverrideFor(t *testing.T) {
	ts, err := ParseTemplates([]byte(templatesYAML))
	require.NoError(t, err)
	hs, _ := ts.Get("hubspot")

	got := hs.OverrideFor([]string{"FIRST NAME", "Email"})
	assert.Equal(t, map[string]CanonicalField{"FIRST NAME": fGiven, "Email": fEmail}, got)
}

func TestLoadTemplates(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)
	assert.Equal(t, 0, ts.Len())

	ts, err = LoadTemplates(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, ts.Len())

	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(templatesYAML), 0o600))
	ts, err = LoadTemplates(path)
	require.NoError(t, err)
	assert.Equal(t, 3, ts.Len())
}

func TestNilTemplateSet(t *testing.T) {
	var ts *TemplateSet
	assert.Equal(t, 0, ts.Len())
	assert.Nil(t, ts.Match("contact", []string{"Email"}))
	_, ok := ts.Get("any")
	assert.False(t, ok)
}

func TestTemplateList(t *testing.T) {
	ts, err := ParseTemplates([]byte(templatesYAML))
	require.NoError(t, err)

	var names []string
	for _, tmpl := range ts.List("contact") {
		names = append(names, tmpl.Name)
	}
	assert.Equal(t, []string{"hubspot", "legacy-crm"}, names)
	assert.Len(t, ts.List("partner"), 2)

	var empty *TemplateSet
	assert.Empty(t, empty.List("contact"))
}
