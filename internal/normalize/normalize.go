// Package normalize holds the canonical forms used for stored identifiers.
package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization trims surrounding whitespace and
// lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// LocalPart returns the part of an email before the first "@", or the whole
// string when there is none.
func LocalPart(e string) string {
	name, _, _ := strings.Cut(e, "@")
	return name
}
