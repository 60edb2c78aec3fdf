// Package mock provides a deterministic embedder for tests and local
// development without model files.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder generates deterministic embeddings from a text hash. Equal
// texts always map to equal vectors, so dedup paths behave exactly as
// with a real model; unrelated texts get near-orthogonal vectors.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with the given dimensions.
// dims <= 0 uses 384, matching all-MiniLM-L6-v2.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = 384
	}
	return &Embedder{dimensions: dims}
}

// Embed creates a deterministic unit vector from the text hash.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		// Simple LCG keeps the vector reproducible per text.
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}
