// Package names normalizes person names so lookups ignore case, diacritics,
// and dash/space differences.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics removes combining marks (e.g., "Jiří" -> "Jiri").
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, _ := transform.String(t, s)
	return out
}

// Normalize folds a display name into a canonical search form: diacritics
// stripped, lowercased, dashes and runs of whitespace collapsed to single
// spaces.
func Normalize(name string) string {
	name = StripDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}
