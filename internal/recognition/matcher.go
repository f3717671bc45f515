package recognition

import (
	"github.com/artlens/artlens/internal/catalog"
	"github.com/artlens/artlens/internal/vector"
)

// Matcher finds the best catalog entry for one query embedding. The linear
// scan below is O(N*D) per detection, which is fine at museum-catalog sizes;
// an approximate index can be swapped in behind this interface without
// touching the frame pipeline.
type Matcher interface {
	BestMatch(query []float32, candidates []catalog.Entry) (Match, bool)
}

// LinearMatcher scans every candidate and keeps the highest dot product.
type LinearMatcher struct{}

// BestMatch returns the candidate with the maximum similarity to query, or
// false when the query is empty, no candidates exist, or every candidate was
// skipped for dimension mismatch. Ties keep the first candidate encountered.
func (LinearMatcher) BestMatch(query []float32, candidates []catalog.Entry) (Match, bool) {
	if len(query) == 0 || len(candidates) == 0 {
		return Match{}, false
	}

	var best Match
	found := false
	for _, e := range candidates {
		if len(e.Embedding) != len(query) {
			continue
		}
		score := vector.Dot(query, e.Embedding)
		if !found || score > best.Confidence {
			best = Match{Entry: e, Confidence: score}
			found = true
		}
	}

	return best, found
}
