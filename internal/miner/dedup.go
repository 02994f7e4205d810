package miner

import (
	"strings"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "for": true, "how": true, "in": true,
	"of": true, "on": true, "the": true, "to": true, "with": true,
}

// titleKeywords lowercases a title and drops stopwords and single-character
// tokens.
func titleKeywords(title string) map[string]bool {
	words := strings.Fields(strings.ToLower(title))
	keywords := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,:;!?\"'()[]")
		if len(w) > 1 && !stopwords[w] {
			keywords[w] = true
		}
	}
	return keywords
}

// titleOverlap computes the Jaccard similarity of the keyword sets of two
// titles, in [0, 1].
func titleOverlap(a, b string) float64 {
	ka, kb := titleKeywords(a), titleKeywords(b)
	if len(ka) == 0 || len(kb) == 0 {
		return 0
	}

	shared := 0
	for w := range ka {
		if kb[w] {
			shared++
		}
	}
	union := len(ka) + len(kb) - shared
	return float64(shared) / float64(union)
}

// isDuplicateTitle reports whether a candidate title overlaps an existing one
// at or above the threshold.
func isDuplicateTitle(candidate string, existing []string, threshold float64) bool {
	for _, title := range existing {
		if titleOverlap(candidate, title) >= threshold {
			return true
		}
	}
	return false
}
