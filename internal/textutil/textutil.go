// Package textutil holds small string helpers shared by the parsing and
// extraction stages.
package textutil

import "strings"

// NormalizeSpaces collapses every run of whitespace into a single space and
// trims the ends.
func NormalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ASCII drops every byte outside the 7-bit range. Multi-byte UTF-8 sequences
// disappear entirely rather than being transliterated.
func ASCII(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c < 0x80 {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
