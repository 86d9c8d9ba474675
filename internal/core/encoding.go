package core

// encoding.go turns the raw upload into text.
//
// Candidates are tried in order. UTF-8 (with or without a byte order mark)
// comes first, UTF-16 is only considered when its byte order mark is
// present, and any other name is looked up in the WHATWG encoding index and
// used as a single-byte fallback. Only when every candidate fails does the
// import stop with a DecodeError.

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names understood by Decode.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF16       = "utf-16"
	EncodingWindows1252 = "windows-1252"
)

// DefaultEncodings is the candidate order used when none is configured.
var DefaultEncodings = []string{EncodingUTF8, EncodingUTF16, EncodingWindows1252}

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// DecodedText is the result of decoding a raw upload.
type DecodedText struct {
	Text     string
	Encoding string
	HadBOM   bool
}

// Decode converts raw bytes to text using the first candidate encoding that
// accepts the input. An empty candidate list means DefaultEncodings.
func Decode(raw []byte, candidates []string) (DecodedText, error) {
	if len(candidates) == 0 {
		candidates = DefaultEncodings
	}

	tried := make([]string, 0, len(candidates))
	for _, name := range candidates {
		name = strings.ToLower(strings.TrimSpace(name))
		tried = append(tried, name)

		var (
			text   string
			hadBOM bool
			ok     bool
		)
		switch name {
		case EncodingUTF8, "utf8":
			text, hadBOM, ok = decodeUTF8(raw)
		case EncodingUTF16, "utf16":
			text, hadBOM, ok = decodeUTF16(raw)
		default:
			text, ok = decodeSingleByte(raw, name)
		}
		if ok {
			return DecodedText{Text: text, Encoding: name, HadBOM: hadBOM}, nil
		}
	}

	return DecodedText{}, &DecodeError{Tried: tried}
}

func decodeUTF8(raw []byte) (string, bool, bool) {
	hadBOM := bytes.HasPrefix(raw, utf8BOM)
	if !utf8.Valid(bytes.TrimPrefix(raw, utf8BOM)) {
		return "", hadBOM, false
	}
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(raw)
	if err != nil {
		return "", hadBOM, false
	}
	return string(out), hadBOM, true
}

func decodeUTF16(raw []byte) (string, bool, bool) {
	if !bytes.HasPrefix(raw, utf16LEBOM) && !bytes.HasPrefix(raw, utf16BEBOM) {
		return "", false, false
	}
	if len(raw)%2 != 0 {
		return "", true, false
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return "", true, false
	}
	return string(out), true, true
}

func decodeSingleByte(raw []byte, name string) (string, bool) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	// Undefined bytes come back as U+FFFD; that is a failed decode unless
	// the replacement character was already in the input.
	if bytes.ContainsRune(out, utf8.RuneError) && !bytes.Contains(raw, []byte(string(utf8.RuneError))) {
		return "", false
	}
	return string(out), true
}
