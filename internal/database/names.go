package database

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// NormalizePersonName is the key under which albums are stored and looked up:
// trimmed, inner whitespace collapsed, Unicode lower-cased.
func NormalizePersonName(name string) string {
	return lower.String(strings.Join(strings.Fields(name), " "))
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// FoldPersonName is a looser comparison key: normalized, without diacritics,
// dashes and underscores read as spaces. Used to match names produced by the
// language model against known album names.
func FoldPersonName(name string) string {
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return NormalizePersonName(RemoveDiacritics(name))
}
