package utils

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"strings"
	"unicode"
)

// Placeholder que protege la "ñ" durante la descomposición NFD, para que no
// pierda la virgulilla junto con los demás acentos.
const enyeMark = "\x00"

// NormalizeString converts to lowercase, trims whitespace and removes accents.
// The letter "ñ" is preserved as a distinct symbol: "año" != "ano".
func NormalizeString(s string) string {
	s = strings.ToLower(s)
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "ñ", enyeMark)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return strings.ReplaceAll(result, enyeMark, "ñ")
}

// NormalizeLetter reduces input to a single normalized lowercase letter.
// Returns "" when the input is not exactly one letter after normalization.
func NormalizeLetter(s string) string {
	n := NormalizeString(s)
	r := []rune(n)
	if len(r) != 1 || !unicode.IsLetter(r[0]) {
		return ""
	}
	return string(r)
}
