package memory

import (
	"context"

	"github.com/companionkit/memcore/core"
)

// Embedder converts text to vector embeddings.
// Implementations: mock.Embedder (testing), onnx.Embedder (local),
// cached.Embedder (ristretto read-through over either).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Candidate is one durable statement proposed by an Extractor before
// it has been embedded or deduplicated.
type Candidate struct {
	Content    string
	Type       MemoryType
	Importance float64
}

// Extractor turns buffered conversation turns into candidate memories.
// Implementations: anthropic.Extractor (Claude), KeywordExtractor
// (dependency-free fallback). A failing extractor is non-fatal; the
// cycle is skipped and the turns stay pending.
type Extractor interface {
	Extract(ctx context.Context, turns []core.ConversationTurn) ([]Candidate, error)
}

// IndexEntry is the stored form of a memory inside a VectorIndex.
type IndexEntry struct {
	ID           string
	UserID       string
	Content      string
	Type         MemoryType
	Importance   float64
	Embedding    []float32
	CreatedAt    string // RFC3339Nano
	LastAccessed string // RFC3339Nano
	AccessCount  int
}

// IndexMatch is one similarity-search result.
type IndexMatch struct {
	Entry IndexEntry

	// Similarity is cosine similarity in [-1,1], higher is closer.
	Similarity float64
}

// VectorIndex is the storage backend behind the long-term store. Every
// operation is scoped by userID: the index may be shared across users
// but is logically partitioned, and implementations must never match
// entries across that partition.
//
// Upsert must be atomic per entry: a cancelled or failed call leaves
// either the previous entry or the new one, never a partial record.
type VectorIndex interface {
	Upsert(ctx context.Context, userID string, entry IndexEntry) error

	// Query returns up to k entries ranked by similarity to vector.
	Query(ctx context.Context, userID string, vector []float32, k int) ([]IndexMatch, error)

	// List returns all entries for the user, unranked.
	List(ctx context.Context, userID string) ([]IndexEntry, error)

	// Delete removes one entry. Deleting an absent ID returns a
	// NotFoundError and leaves the index unchanged.
	Delete(ctx context.Context, userID, id string) error

	// Close releases resources.
	Close() error
}

// RelationshipProvider supplies the read-only persona/affection
// metadata the context composer attaches to bundles. Optional; a nil
// provider simply leaves the bundle's Relationship empty.
type RelationshipProvider interface {
	Relationship(ctx context.Context, userID string) (core.Relationship, error)
}
