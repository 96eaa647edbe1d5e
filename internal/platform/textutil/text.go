// Package textutil normalises free text supplied by clients before it is stored or compared.
package textutil

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
)

var plainTextPolicy = bluemonday.StrictPolicy()

// SanitizePlainText strips markup, collapses whitespace and truncates to limit runes.
func SanitizePlainText(value string, limit int) string {
	stripped := html.UnescapeString(plainTextPolicy.Sanitize(value))
	cleaned := strings.Join(strings.FieldsFunc(stripped, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}), " ")
	if limit > 0 {
		if runes := []rune(cleaned); len(runes) > limit {
			cleaned = strings.TrimSpace(string(runes[:limit]))
		}
	}
	return cleaned
}

// FoldKey returns a caseless, whitespace-normalised form of value for equality checks.
func FoldKey(value string) string {
	return cases.Fold().String(strings.Join(strings.Fields(value), " "))
}

// Slug lower-cases value and keeps letters, digits and single dashes.
func Slug(value string) string {
	var b strings.Builder
	dash := false
	for _, r := range cases.Fold().String(strings.TrimSpace(value)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case r == '-' || r == '_' || unicode.IsSpace(r):
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
