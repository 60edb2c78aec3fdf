// Package cached wraps any embedder with a ristretto read-through
// cache. Consolidation embeds the same distilled statements over and
// over (dedup lookups, repeated facts), so caching by exact text cuts
// most provider calls.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/companionkit/memcore/memory"
)

// DefaultMaxEntries bounds the cache when no size is given.
const DefaultMaxEntries = 10000

// Embedder is a caching decorator over another memory.Embedder.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache holding up to maxEntries vectors.
// maxEntries <= 0 uses DefaultMaxEntries.
func New(inner memory.Embedder, maxEntries int64) (*Embedder, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, calling the inner embedder
// on a miss. Failures are never cached.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if val, ok := e.cache.Get(text); ok {
		if vec, ok := val.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, 1)
	return vec, nil
}

// Wait blocks until buffered cache writes are applied. Useful after
// warm-up batches and in tests; steady-state callers never need it.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Dimensions passes through to the wrapped embedder.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close releases the cache.
func (e *Embedder) Close() {
	e.cache.Close()
}
