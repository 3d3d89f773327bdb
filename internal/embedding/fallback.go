package embedding

import (
	"hash/crc32"
	"math"
	"regexp"
	"strings"
)

// FallbackDim is the dimensionality of locally generated embeddings.
const FallbackDim = 128

var tokenSplitRe = regexp.MustCompile(`\W+`)

// Fallback produces a deterministic bag-of-words embedding. Tokens shorter
// than three characters are dropped, each remaining token is hashed into one
// of FallbackDim buckets, and the resulting vector is L2-normalized. The same
// input always yields a bit-identical vector.
func Fallback(text string) []float32 {
	counts := make(map[string]float64)
	for _, tok := range tokenSplitRe.Split(strings.ToLower(text), -1) {
		if len(tok) > 2 {
			counts[tok]++
		}
	}

	var buckets [FallbackDim]float64
	for tok, n := range counts {
		idx := crc32.ChecksumIEEE([]byte(tok)) % FallbackDim
		buckets[idx] += n
	}

	var sumSq float64
	for _, v := range buckets {
		sumSq += v * v
	}

	vec := make([]float32, FallbackDim)
	if sumSq == 0 {
		return vec
	}
	norm := math.Sqrt(sumSq)
	for i, v := range buckets {
		vec[i] = float32(v / norm)
	}
	return vec
}

// CosineSimilarity returns the cosine of the angle between a and b. Vectors
// of different lengths, or with a zero norm, score zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
