package usecase

import "strings"

// tokenSet is the set of lower-cased whitespace separated tokens of a string
type tokenSet map[string]struct{}

// tokenize splits text on whitespace into a lower-cased token set
func tokenize(text string) tokenSet {
	fields := strings.Fields(strings.ToLower(text))
	set := make(tokenSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccard returns |a ∩ b| / |a ∪ b|, or 0 when either set is empty
func jaccard(a, b tokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection

	return float64(intersection) / float64(union)
}

// tokenOverlap is the Jaccard similarity of two strings' token sets
func tokenOverlap(a, b string) float64 {
	return jaccard(tokenize(a), tokenize(b))
}

// buildSearchQuery joins the preferred brand, the generic name and the
// preferred size, skipping whichever hints are blank.
func buildSearchQuery(genericName, preferBrand, preferSize string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{preferBrand, genericName, preferSize} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
