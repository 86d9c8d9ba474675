package core

// convert.go holds the cell-level cleanup and coercion helpers used by the
// validator.
//
// These functions handle the messy reality of exported CRM data:
//   - Excel formula prefixes (="value") and stray quotes
//   - Phone numbers with punctuation, spaces and extensions
//   - Several email addresses crammed into one cell
//   - Full names in one column instead of given/family columns
//   - Various boolean representations (yes/no, true/false, 1/0, on/off)

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Phone numbers must carry this many digits after cleanup.
const (
	MinPhoneDigits = 6
	MaxPhoneDigits = 15
)

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") && len(s) > 1 {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// CollapseSpaces trims s and folds every run of whitespace into one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeHeader lowercases s and drops everything but letters and digits.
func normalizeHeader(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeChoice canonicalizes an enum value: lowercase, spaces and
// hyphens become underscores.
func normalizeChoice(s string) string {
	s = strings.ToLower(CollapseSpaces(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// NormalizePhone strips every non-digit, keeping a leading plus sign.
// ok is false when the digit count is outside MinPhoneDigits..MaxPhoneDigits.
func NormalizePhone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	plus := strings.HasPrefix(s, "+")

	var b strings.Builder
	if plus {
		b.WriteByte('+')
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			digits++
		}
	}
	if digits < MinPhoneDigits || digits > MaxPhoneDigits {
		return b.String(), false
	}
	return b.String(), true
}

// CleanName collapses whitespace and title-cases shouting values
// ("JOHN SMITH" becomes "John Smith"). Short all-caps values such as
// initials are left alone.
func CleanName(s string) string {
	s = CollapseSpaces(s)
	if len([]rune(s)) <= 2 || !isAllCaps(s) {
		return s
	}
	// Casers carry state; one per call keeps validation workers independent.
	return cases.Title(language.Und).String(s)
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 0
}

// ParseBool accepts true/false, yes/no, y/n, t/f, 1/0 and on/off.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1", "on":
		return true, true
	case "false", "f", "no", "n", "0", "off":
		return false, true
	default:
		return false, false
	}
}

// FormatBool renders a parsed boolean the way records store it.
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// StripHandle removes a leading @ and surrounding whitespace.
func StripHandle(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

// DefaultURLScheme prefixes bare host names ("example.com").
func DefaultURLScheme(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "://") {
		return s
	}
	return "https://" + s
}

var emailSeparators = strings.NewReplacer(
	";", ",", "|", ",", "\n", ",", "\t", ",",
	" and ", ",", " AND ", ",", " & ", ",",
)

// SplitEmails breaks a cell holding several addresses into its parts.
// Recognised separators are comma, semicolon, pipe, "and" and "&".
func SplitEmails(s string) []string {
	parts := strings.Split(emailSeparators.Replace(s), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var nameTitles = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true,
	"prof": true, "professor": true, "sir": true, "madam": true,
}

var nameSuffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
	"phd": true, "md": true, "esq": true,
}

// PersonName is a full name split into its parts.
type PersonName struct {
	Title  string
	Given  string
	Middle string
	Family string
	Suffix string
}

// SplitFullName splits "Dr. Ada M. Lovelace Jr." into its parts. A single
// word becomes the given name.
func SplitFullName(s string) PersonName {
	words := strings.Fields(s)
	var n PersonName

	if len(words) > 1 && nameTitles[nameToken(words[0])] {
		n.Title = words[0]
		words = words[1:]
	}
	if len(words) > 1 {
		last := words[len(words)-1]
		if nameSuffixes[nameToken(last)] {
			n.Suffix = last
			words = words[:len(words)-1]
		}
	}

	switch len(words) {
	case 0:
	case 1:
		n.Given = words[0]
	case 2:
		n.Given, n.Family = words[0], words[1]
	default:
		n.Given = words[0]
		n.Middle = strings.Join(words[1:len(words)-1], " ")
		n.Family = words[len(words)-1]
	}
	return n
}

func nameToken(s string) string {
	return strings.ToLower(strings.Trim(s, ".,"))
}
