package common

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Capitalize upper-cases the first letter of s and lower-cases the rest:
// "uuid" -> "Uuid", "UUID" -> "Uuid".
func Capitalize(s string) string {
	if s == "" {
		return ""
	}

	// A Caser is stateful; never share one between goroutines.
	return cases.Title(language.Und).String(s)
}

// TrimSuffixStrict strips suffix from s and reports whether it did. The
// suffix alone is not considered a match: "Uuid" has no prefix left.
func TrimSuffixStrict(s, suffix string) (string, bool) {
	if suffix == "" || len(s) <= len(suffix) || !strings.HasSuffix(s, suffix) {
		return s, false
	}

	return strings.TrimSuffix(s, suffix), true
}
