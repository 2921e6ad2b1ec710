package validators

import (
	"strings"
	"unicode"
)

// sanitizer is implemented by request bodies holding free text. DecodeJSONBody
// calls Sanitize after decoding and before validation.
type sanitizer interface {
	Sanitize()
}

// CleanText trims s and drops control characters other than newline and tab,
// so dispute narratives render safely in the admin console and in CSV exports.
func CleanText(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s))
}
