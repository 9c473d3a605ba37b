package domain

import "strings"

// NormalizeText trims leading and trailing whitespace and collapses
// internal whitespace runs to single spaces. The embedder gateway and
// the cache fingerprint share this normalisation so that trivially
// different spellings of the same query hit the same cache entry.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
