package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func commonKinds(d *Diagnosis) []string {
	kinds := make([]string, len(d.CommonIssues))
	for i, ci := range d.CommonIssues {
		kinds[i] = ci.Kind
	}
	return kinds
}

func TestDiagnoseHealthyFile(t *testing.T) {
	im := newTestImporter(t, nil)

	d, err := im.Diagnose(context.Background(), []byte("name;mail\nAda Lovelace;ada@example.com\n"))
	require.NoError(t, err)

	assert.True(t, d.Decoded)
	assert.Equal(t, EncodingUTF8, d.Encoding)
	assert.Equal(t, "LF", d.LineEndings)
	assert.Equal(t, 2, d.Lines)
	require.NotNil(t, d.Dialect)
	assert.Equal(t, "semicolon", d.Dialect.Delimiter)
	assert.Equal(t, []string{"name", "mail"}, d.Headers)
	assert.Equal(t, 1, d.TotalRows)
	assert.Equal(t, 1.0, d.MappingConfidence)
	assert.Empty(t, d.MissingMandatory)
	assert.Equal(t, [][]string{{"Ada Lovelace", "ada@example.com"}}, d.SampleRows)
	assert.True(t, d.Healthy(), "issues: %v", d.CommonIssues)
}

func TestDiagnoseUndecodable(t *testing.T) {
	im := NewImporter(contactSchema(t), nil, Options{Encodings: []string{EncodingUTF8}, Logger: zap.NewNop()})

	d, err := im.Diagnose(context.Background(), []byte{'a', 0xff, 'b'})
	require.NoError(t, err)

	assert.False(t, d.Decoded)
	assert.Equal(t, []string{CommonUndecodable}, commonKinds(d))
	assert.False(t, d.Healthy())
}

func TestDiagnoseCommonIssues(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"null bytes", "name,email\x00\nAda,ada@example.com\n", CommonNullBytes},
		{"mixed line endings", "name,email\r\nAda,ada@example.com\nGrace,grace@example.com\r\n", CommonMixedEndings},
		{"formula cells", "name,email\n=\"Ada\",ada@example.com\n", CommonFormulaCells},
		{"mixed quotes", "name,email\n\"Ada\",'ada@example.com'\n", CommonMixedQuotes},
		{"non printable", "name,email\nAda\x07,ada@example.com\n", CommonNonPrintable},
		{"single column", "email\nada@example.com\n", CommonLowConfidence},
		{"missing mandatory", "phone,fax\n123456,654321\n", CommonMissingMapping},
		{
			"long line",
			"name,email\n" + strings.Repeat("Ada,ada@example.com\n", 20) + strings.Repeat("x", 2000) + ",y\n",
			CommonLongLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := newTestImporter(t, nil)
			d, err := im.Diagnose(context.Background(), []byte(tt.text))
			require.NoError(t, err)
			assert.Contains(t, commonKinds(d), tt.want)
			assert.False(t, d.Healthy())
		})
	}
}

func TestDiagnoseSampleRowsCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("name,email\n")
	for i := 0; i < DiagnoseSampleRows+3; i++ {
		b.WriteString("Ada,ada@example.com\n")
	}

	d, err := newTestImporter(t, nil).Diagnose(context.Background(), []byte(b.String()))
	require.NoError(t, err)
	assert.Len(t, d.SampleRows, DiagnoseSampleRows)
	assert.Equal(t, DiagnoseSampleRows+3, d.TotalRows)
}

func TestDiagnoseEmptyInput(t *testing.T) {
	_, err := newTestImporter(t, nil).Diagnose(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEmptyInput))
}

func TestLineEndings(t *testing.T) {
	tests := []struct {
		text      string
		wantKind  string
		wantLines int
	}{
		{"a\nb\n", "LF", 2},
		{"a\r\nb\r\n", "CRLF", 2},
		{"a\rb\r", "CR", 2},
		{"a\r\nb\n", "mixed", 2},
		{"a\nb", "LF", 2},
		{"a", "none", 1},
		{"", "none", 0},
	}
	for _, tt := range tests {
		kind, lines := lineEndings(tt.text)
		assert.Equal(t, tt.wantKind, kind, "text %q", tt.text)
		assert.Equal(t, tt.wantLines, lines, "text %q", tt.text)
	}
}
