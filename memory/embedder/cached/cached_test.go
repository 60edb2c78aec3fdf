package cached_test

import (
	"context"
	"testing"

	"github.com/companionkit/memcore/memory/embedder/cached"
	"github.com/companionkit/memcore/memory/embedder/mock"
)

// countingEmbedder counts how often the inner embedder actually runs.
type countingEmbedder struct {
	*mock.Embedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.Embedder.Embed(ctx, text)
}

func TestEmbedder_CachesRepeatedTexts(t *testing.T) {
	inner := &countingEmbedder{Embedder: mock.New(32)}
	emb, err := cached.New(inner, 100)
	if err != nil {
		t.Fatalf("create cached embedder: %v", err)
	}
	defer emb.Close()
	ctx := context.Background()

	first, err := emb.Embed(ctx, "likes hotpot")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	emb.Wait()

	second, err := emb.Embed(ctx, "likes hotpot")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner embedder ran %d times, want 1 with the repeat served from cache", inner.calls)
	}
	if len(first) != len(second) {
		t.Fatalf("vector lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}
}

func TestEmbedder_DistinctTextsMiss(t *testing.T) {
	inner := &countingEmbedder{Embedder: mock.New(32)}
	emb, err := cached.New(inner, 100)
	if err != nil {
		t.Fatalf("create cached embedder: %v", err)
	}
	defer emb.Close()
	ctx := context.Background()

	if _, err := emb.Embed(ctx, "likes hotpot"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if _, err := emb.Embed(ctx, "afraid of spiders"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner embedder ran %d times, want 2 for distinct texts", inner.calls)
	}
}

func TestEmbedder_DimensionsPassThrough(t *testing.T) {
	emb, err := cached.New(mock.New(48), 0)
	if err != nil {
		t.Fatalf("create cached embedder: %v", err)
	}
	defer emb.Close()

	if got := emb.Dimensions(); got != 48 {
		t.Fatalf("dimensions = %d, want 48", got)
	}
}
