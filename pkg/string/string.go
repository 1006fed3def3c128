// Package string normalizes free-text input before it is validated or stored.
package string

import (
	"strings"
	"unicode"
)

// CollapseSpace trims s and replaces every run of whitespace with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripAngleBrackets removes '<' and '>' so the value cannot open markup.
func StripAngleBrackets(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, s)
}

// Sanitize applies StripAngleBrackets then CollapseSpace.
func Sanitize(s string) string {
	return CollapseSpace(StripAngleBrackets(s))
}

// ToSnakeCase lowers a Go identifier into snake_case, keeping initialisms
// together ("RequestID" becomes "request_id").
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
