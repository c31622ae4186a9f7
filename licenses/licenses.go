// Package licenses maps free-text license declarations onto canonical
// SPDX-style identifiers.
package licenses

import (
	"strings"
	"unicode/utf8"
)

// Other is the identifier assigned to license text that is present but
// cannot be matched against the canonical table. It distinguishes a package
// with an unparseable license from one with no license at all.
const Other = "Other"

// maxRawLength is a character count guarding against prose-length license
// fields; anything longer is classified as Other rather than parsed.
const maxRawLength = 150

// Normalize maps a raw license declaration onto canonical identifiers.
// It never fails: blank input yields an empty list, unmatchable input
// yields [Other].
//
// Compound declarations are split on "or" when present, else on "and",
// else on commas and slashes. This flattens boolean license expressions
// into a plain list; downstream consumers depend on that exact (if
// imperfect) shape, so do not replace it with an SPDX expression parser.
func Normalize(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	if utf8.RuneCountInString(raw) > maxRawLength {
		return []string{Other}
	}

	s := strings.ToLower(strings.TrimSpace(raw))
	// Common wrapping artifact in source metadata: "(MIT OR Apache-2.0)".
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")

	var fragments []string
	switch {
	case strings.Contains(s, "or"):
		fragments = strings.Split(s, "or")
	case strings.Contains(s, "and"):
		fragments = strings.Split(s, "and")
	default:
		fragments = strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == '/'
		})
	}

	var result []string
	for _, fragment := range fragments {
		if id, ok := find(fragment); ok {
			result = append(result, id)
		}
	}

	if len(result) == 0 {
		return []string{Other}
	}
	return result
}

// NormalizeSingle matches one detected license (e.g. from a linked
// repository) against the canonical table. Unlike Normalize it performs no
// splitting and yields an empty list on a miss, so callers can fall through
// to "no license information".
func NormalizeSingle(raw string) []string {
	if id, ok := find(raw); ok {
		return []string{id}
	}
	return []string{}
}

// find looks a single fragment up in the canonical identifier table,
// whitespace-trimmed and case-insensitive.
func find(fragment string) (string, bool) {
	id, ok := canonical[strings.TrimSpace(strings.ToLower(fragment))]
	return id, ok
}
