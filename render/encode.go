package render

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ContentType is the MIME type of serialized documents.
const ContentType = "application/pdf"

const dataURIPrefix = "data:" + ContentType + ";base64,"

// Encode returns the standard base64 encoding of a serialized document.
func Encode(pdf []byte) string {
	return base64.StdEncoding.EncodeToString(pdf)
}

// DataURI returns pdf as a data URI, the form mail templates attach.
func DataURI(pdf []byte) string {
	return dataURIPrefix + Encode(pdf)
}

// Decode reverses Encode and DataURI.
func Decode(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), dataURIPrefix)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("render: decoding document: %w", err)
	}
	return b, nil
}

// SuggestedFileName returns "<Name>_Contract_<YYYY-MM-DD>.pdf" for a client
// name and signing date, taken in the date's own location. The name part is reduced to ASCII letters, digits,
// '-', '.' and '_' so the result is safe on any filesystem.
func SuggestedFileName(fullName string, date time.Time) string {
	return Slug(fullName) + "_Contract_" + date.Format("2006-01-02") + ".pdf"
}

var foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug folds diacritics, turns whitespace runs into '_' and drops every
// other character outside [A-Za-z0-9._-]. It returns "Client" when nothing
// is left.
func Slug(name string) string {
	folded, _, err := transform.String(foldMarks, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'):
		case r == '.' && b.Len() > 0:
		default:
			continue
		}
		if space {
			b.WriteByte('_')
			space = false
		}
		b.WriteRune(r)
	}

	s := strings.Trim(b.String(), "._-")
	if s == "" {
		return "Client"
	}
	return s
}
