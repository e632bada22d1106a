package util

import "strings"

// SanitizeIdentifier strips characters that must never reach a query:
// the leading @ people paste from the UI, plus quote and statement
// separators.
func SanitizeIdentifier(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '@', '\'', '"', ';':
			return -1
		}
		return r
	}, s)
}

// Truncate bounds s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
