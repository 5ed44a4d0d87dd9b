// Package namekey turns free-text person names into the canonical keys used to
// match contacts across the CRM export and a batch of new records.
package namekey

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	disallowedRe = regexp.MustCompile(`[^a-z0-9\s-]+`)
	hyphenRunRe  = regexp.MustCompile(`\s*-[\s-]*`)
	spaceRunRe   = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes a single name fragment for comparison:
//  1. Trimming whitespace (blank input yields "")
//  2. Removing combining accents, then transliterating anything left to ASCII
//     ("René" -> "Rene", "Straße" -> "Strasse")
//  3. Lowercasing
//  4. Dropping everything except letters, digits, whitespace and hyphens
//  5. Folding whitespace around hyphens and repeated hyphens into one "-"
//  6. Collapsing whitespace runs to a single space
//
// Normalize is idempotent.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = unidecode.Unidecode(stripMarks(s))
	s = strings.ToLower(s)
	s = disallowedRe.ReplaceAllString(s, "")
	s = hyphenRunRe.ReplaceAllString(s, "-")
	s = spaceRunRe.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// Build combines a last name and a first name into a match key. When only one
// side survives normalization it is used alone; "" means the pair carries no
// usable identity and must not take part in matching.
func Build(last, first string) string {
	ln := Normalize(last)
	fn := Normalize(first)

	switch {
	case ln != "" && fn != "":
		return ln + " " + fn
	case ln != "":
		return ln
	default:
		return fn
	}
}

// stripMarks decomposes s and drops combining marks. A fresh chain is built per
// call since transform.Chain keeps internal state.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
