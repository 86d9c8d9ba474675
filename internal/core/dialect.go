package core

import (
	"encoding/csv"
	"sort"
	"strings"
)

// DefaultSampleSize is how many characters delimiter detection looks at.
const DefaultSampleSize = 1000

// DelimiterCandidates are tried in this order; ties keep the earlier one.
var DelimiterCandidates = []rune{',', ';', '\t', '|'}

// DelimiterName returns a readable name for a delimiter.
func DelimiterName(d rune) string {
	switch d {
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '\t':
		return "tab"
	case '|':
		return "pipe"
	default:
		return string(d)
	}
}

// ParseDelimiter accepts a delimiter by name or as the literal character.
func ParseDelimiter(s string) (rune, bool) {
	switch strings.ToLower(s) {
	case "comma", ",":
		return ',', true
	case "semicolon", ";":
		return ';', true
	case "tab", "\t", `\t`:
		return '\t', true
	case "pipe", "|":
		return '|', true
	}
	return 0, false
}

// DelimiterScore is how one candidate fared on the sample.
type DelimiterScore struct {
	Delimiter    string `json:"delimiter"`
	Count        int    `json:"count"`
	FirstFields  int    `json:"first_row_fields"`
	SecondFields int    `json:"second_row_fields"`
	MultiField   bool   `json:"multi_field"`
	Consistent   bool   `json:"consistent"`

	char rune
}

// Char returns the delimiter character.
func (s DelimiterScore) Char() rune { return s.char }

// better reports whether s ranks above o.
func (s DelimiterScore) better(o DelimiterScore) bool {
	if s.MultiField != o.MultiField {
		return s.MultiField
	}
	if s.Consistent != o.Consistent {
		return s.Consistent
	}
	if s.FirstFields != o.FirstFields {
		return s.FirstFields > o.FirstFields
	}
	return s.Count > o.Count
}

// Dialect describes how to parse a decoded batch.
type Dialect struct {
	Encoding      string           `json:"encoding"`
	HadBOM        bool             `json:"bom"`
	Delimiter     string           `json:"delimiter"`
	LowConfidence bool             `json:"low_confidence"`
	Candidates    []DelimiterScore `json:"candidates"`

	comma rune
}

// Comma returns the delimiter character.
func (d Dialect) Comma() rune {
	if d.comma == 0 {
		return ','
	}
	return d.comma
}

// NewDialect builds a dialect with a fixed delimiter, skipping detection.
func NewDialect(encoding string, delimiter rune) Dialect {
	return Dialect{Encoding: encoding, Delimiter: DelimiterName(delimiter), comma: delimiter}
}

// DetectDialect picks the delimiter for decoded text by sampling its first
// sampleSize characters. It never fails: when no candidate splits both
// sampled rows into several fields, comma is chosen and LowConfidence set.
func DetectDialect(dec DecodedText, sampleSize int) Dialect {
	sample := sampleText(dec.Text, sampleSize)

	scores := make([]DelimiterScore, len(DelimiterCandidates))
	for i, d := range DelimiterCandidates {
		scores[i] = scoreDelimiter(sample, d)
	}

	ranked := append([]DelimiterScore(nil), scores...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].better(ranked[j]) })

	d := Dialect{
		Encoding:   dec.Encoding,
		HadBOM:     dec.HadBOM,
		Candidates: scores,
	}
	best := ranked[0]
	if !best.MultiField {
		d.comma = ','
		d.LowConfidence = true
	} else {
		d.comma = best.char
	}
	d.Delimiter = DelimiterName(d.comma)
	return d
}

func scoreDelimiter(sample string, d rune) DelimiterScore {
	s := DelimiterScore{
		Delimiter: DelimiterName(d),
		Count:     strings.Count(sample, string(d)),
		char:      d,
	}

	r := csv.NewReader(strings.NewReader(sample))
	r.Comma = d
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	first, err := r.Read()
	if err != nil {
		return s
	}
	s.FirstFields = len(first)

	second, err := r.Read()
	if err != nil {
		return s
	}
	s.SecondFields = len(second)
	s.MultiField = s.FirstFields > 1 && s.SecondFields > 1
	s.Consistent = s.FirstFields == s.SecondFields
	return s
}

func sampleText(text string, n int) string {
	if n <= 0 {
		n = DefaultSampleSize
	}
	count := 0
	for pos := range text {
		if count == n {
			return text[:pos]
		}
		count++
	}
	return text
}
