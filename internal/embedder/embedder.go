// Package embedder defines the stateless text→vector trait (spec §4.8)
// and a deterministic local implementation suitable for MVP search without
// any external model dependency.
package embedder

import (
	"context"
	"math"
	"strings"
)

// Embedder converts text to a fixed-dimension vector. Real model-backed
// implementations are external collaborators (spec §1); this package only
// defines the contract plus a local deterministic stand-in.
type Embedder interface {
	// Embed returns a vector for text. Implementations should be safe for
	// concurrent use.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions reports the fixed vector length this embedder produces.
	Dimensions() int
	// Model names the embedding model, recorded alongside stored vectors.
	Model() string
}

// Local is a deterministic hashed character-bigram count embedder: no network
// calls, no model weights, just enough signal for exact-match and
// near-duplicate semantic search tests (spec §8, scenario 6).
type Local struct {
	dims int
}

// NewLocal constructs a Local embedder projecting bigram hashes into a
// dims-length vector.
func NewLocal(dims int) *Local {
	if dims <= 0 {
		dims = 64
	}
	return &Local{dims: dims}
}

func (l *Local) Dimensions() int { return l.dims }

func (l *Local) Model() string { return "local-bigram-v1" }

// Embed hashes every overlapping character bigram of the lowercased input
// into a bucket and counts occurrences, then L2-normalizes. Identical
// texts always produce identical vectors; similar texts share buckets.
func (l *Local) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, l.dims)
	runes := []rune(strings.ToLower(text))
	if len(runes) == 0 {
		return vec, nil
	}
	if len(runes) == 1 {
		bucket := bigramHash(string(runes[0])+" ", l.dims)
		vec[bucket]++
	}
	for i := 0; i < len(runes)-1; i++ {
		bigram := string(runes[i : i+2])
		bucket := bigramHash(bigram, l.dims)
		vec[bucket]++
	}
	normalize(vec)
	return vec, nil
}

func bigramHash(s string, dims int) int {
	var h uint32 = 2166136261
	for _, b := range []byte(s) {
		h ^= uint32(b)
		h *= 16777619
	}
	return int(h % uint32(dims))
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= inv
	}
}
