// Package slug derives URL-safe tenant slugs from organization names and
// allocates unused ones against the tenant store.
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a name has no characters that survive derivation.
const Fallback = "org"

// Derive returns the slug base for an organization name: lower-cased, diacritics
// removed, runs of anything outside [a-z0-9] collapsed to one hyphen, with no
// leading or trailing hyphen. Derive never returns an empty string.
func Derive(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(name))
	if err != nil {
		folded = strings.ToLower(name)
	}

	var b strings.Builder
	b.Grow(len(folded))

	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	if b.Len() == 0 {
		return Fallback
	}
	return b.String()
}

// WithSuffix returns base for suffix 0 and base-N otherwise.
func WithSuffix(base string, suffix int) string {
	if suffix == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(suffix)
}

// Valid reports whether s is in canonical slug form.
func Valid(s string) bool {
	if s == "" || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	prevHyphen := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevHyphen = false
		case c == '-':
			if prevHyphen {
				return false
			}
			prevHyphen = true
		default:
			return false
		}
	}
	return true
}
