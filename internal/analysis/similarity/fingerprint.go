package similarity

import (
	"hash/fnv"
	"strings"

	"github.com/clearcite/integrity-engine/internal/analysis/ingest"
)

// shingleSep keeps "a bc" and "ab c" from fingerprinting identically.
const shingleSep = "\x1f"

// Fingerprint hashes one shingle of k tokens starting at start. Tokens are
// lowercased so casing differences don't defeat matching; the stored
// document text keeps its original case.
func Fingerprint(words []string, start, k int) uint64 {
	h := fnv.New64a()
	for i := start; i < start+k; i++ {
		if i > start {
			h.Write([]byte(shingleSep))
		}
		h.Write([]byte(strings.ToLower(words[i])))
	}
	return h.Sum64()
}

// Fingerprints returns one fingerprint per shingle position. A document
// shorter than k tokens has no shingles.
func Fingerprints(doc *ingest.NormalizedText, k int) []uint64 {
	words := doc.Words()
	if len(words) < k {
		return nil
	}
	out := make([]uint64, len(words)-k+1)
	for i := range out {
		out[i] = Fingerprint(words, i, k)
	}
	return out
}
