package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantDelimiter string
		wantComma     rune
		wantLow       bool
	}{
		{"comma", "name,email,phone\nAda,ada@example.com,123456\n", "comma", ',', false},
		{"semicolon", "name;email\nAda;ada@example.com\n", "semicolon", ';', false},
		{"tab", "name\temail\nAda\tada@example.com\n", "tab", '\t', false},
		{"pipe", "name|email\nAda|ada@example.com\n", "pipe", '|', false},
		{"comma inside values", "name;amount\nAda;1,50\n", "semicolon", ';', false},
		{"quoted delimiter", "\"a,b\";c\n\"1,2\";3\n", "semicolon", ';', false},
		{"tie keeps earlier candidate", "a,b;c\n1,2;3\n", "comma", ',', false},
		{"single column", "name\nAda\n", "comma", ',', true},
		{"header only", "name;email\n", "comma", ',', true},
		{"empty", "", "comma", ',', true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DetectDialect(DecodedText{Text: tt.text, Encoding: EncodingUTF8}, 0)
			assert.Equal(t, tt.wantDelimiter, d.Delimiter)
			assert.Equal(t, tt.wantComma, d.Comma())
			assert.Equal(t, tt.wantLow, d.LowConfidence)
			assert.Len(t, d.Candidates, len(DelimiterCandidates))
			assert.Equal(t, EncodingUTF8, d.Encoding)
		})
	}
}

func TestDetectDialectSampleSize(t *testing.T) {
	// The semicolon rows start after the sampled prefix.
	text := "name\nAda\n" + "a;b\n1;2\n"
	d := DetectDialect(DecodedText{Text: text}, 9)
	assert.True(t, d.LowConfidence)
	assert.Equal(t, ',', d.Comma())
}

func TestSampleText(t *testing.T) {
	assert.Equal(t, "hé", sampleText("héllo", 2))
	assert.Equal(t, "héllo", sampleText("héllo", 10))
}

func TestDelimiterNames(t *testing.T) {
	for _, d := range DelimiterCandidates {
		got, ok := ParseDelimiter(DelimiterName(d))
		assert.True(t, ok)
		assert.Equal(t, d, got)
	}

	got, ok := ParseDelimiter(`\t`)
	assert.True(t, ok)
	assert.Equal(t, '\t', got)

	_, ok = ParseDelimiter("colon")
	assert.False(t, ok)
}

func TestDialectZeroValueComma(t *testing.T) {
	assert.Equal(t, ',', Dialect{}.Comma())
	assert.Equal(t, ';', NewDialect(EncodingUTF8, ';').Comma())
	assert.Equal(t, "semicolon", NewDialect(EncodingUTF8, ';').Delimiter)
}
