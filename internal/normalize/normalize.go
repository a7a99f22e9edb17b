// Package normalize folds text for accent- and case-insensitive comparison.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ligatures are letters that carry no combining mark but are typed as two
// letters by most users ("coeur" for "cœur").
var ligatures = strings.NewReplacer(
	"œ", "oe",
	"æ", "ae",
	"ß", "ss",
)

// Normalize lowercases s and strips diacritical marks, so "Œsophage",
// "oesophage" and "ŒSOPHAGE" all compare equal. It is pure and
// idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	lowered := ligatures.Replace(strings.ToLower(s))
	// A transformer chain keeps internal state, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, lowered)
	if err != nil {
		// Only reachable on invalid UTF-8; fall back to the lowered input.
		return lowered
	}
	return result
}

// Equal reports whether a and b are the same word once normalized.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Contains reports whether the normalized needle is a substring of the
// normalized haystack.
func Contains(haystack, needle string) bool {
	return strings.Contains(Normalize(haystack), Normalize(needle))
}
