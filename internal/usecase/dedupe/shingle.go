package dedupe

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// normalize lowercases content and collapses all whitespace runs to single
// spaces, so fingerprints are case- and whitespace-insensitive.
func normalize(content string) string {
	return strings.Join(strings.Fields(strings.ToLower(content)), " ")
}

// fingerprint computes the deterministic signature of normalized content.
func fingerprint(normalized string) uint64 {
	return xxhash.Sum64String(normalized)
}

// shingleSet hashes every k-word window of the normalized content.
// Content shorter than k words yields a single whole-content shingle.
func shingleSet(normalized string, k int) map[uint64]struct{} {
	words := strings.Fields(normalized)
	set := make(map[uint64]struct{})
	if len(words) < k {
		set[xxhash.Sum64String(normalized)] = struct{}{}
		return set
	}
	for i := 0; i+k <= len(words); i++ {
		set[xxhash.Sum64String(strings.Join(words[i:i+k], " "))] = struct{}{}
	}
	return set
}

// jaccard computes |a ∩ b| / |a ∪ b|.
func jaccard(a, b map[uint64]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for s := range small {
		if _, ok := large[s]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
