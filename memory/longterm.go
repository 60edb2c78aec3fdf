package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ScoreWeights controls how similarity and importance combine into the
// retrieval score.
type ScoreWeights struct {
	Similarity float64
	Importance float64
}

// DefaultScoreWeights weight similarity over stored importance.
var DefaultScoreWeights = ScoreWeights{Similarity: 0.7, Importance: 0.3}

// StoreConfig holds LongTermStore tuning.
type StoreConfig struct {
	// Weights for the combined retrieval score.
	Weights ScoreWeights

	// MaxRetries bounds the retry attempts per index call.
	MaxRetries uint

	// RetryInterval seeds the exponential backoff between attempts.
	RetryInterval time.Duration
}

// DefaultStoreConfig returns the defaults used when config is nil.
var DefaultStoreConfig = &StoreConfig{
	Weights:       DefaultScoreWeights,
	MaxRetries:    3,
	RetryInterval: 100 * time.Millisecond,
}

// RetrieveOptions narrows a relevance query.
type RetrieveOptions struct {
	// Types restricts results to the given memory types. Empty means all.
	Types []MemoryType

	// MinImportance drops memories below the threshold.
	MinImportance float64
}

// BatchFailure pairs a memory with the error that kept it out of the
// store during a batch insert.
type BatchFailure struct {
	Memory *Memory
	Err    error
}

// LongTermStore is the durable, per-user memory collection. It wraps a
// VectorIndex with validation, embedding, combined-score ranking and a
// bounded retry policy for transient index failures.
type LongTermStore struct {
	index    VectorIndex
	embedder Embedder
	config   *StoreConfig
}

// NewLongTermStore creates a store over the given index and embedder.
func NewLongTermStore(index VectorIndex, embedder Embedder, config *StoreConfig) *LongTermStore {
	if config == nil {
		config = DefaultStoreConfig
	}
	return &LongTermStore{
		index:    index,
		embedder: embedder,
		config:   config,
	}
}

// Embed runs the store's embedder, mapping failures to
// EmbeddingServiceError.
func (s *LongTermStore) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &EmbeddingServiceError{Err: err}
	}
	return vec, nil
}

// AddMemory validates, embeds (when no embedding is attached) and
// inserts a memory under (user_id, id).
func (s *LongTermStore) AddMemory(ctx context.Context, mem *Memory) error {
	if err := mem.Validate(); err != nil {
		return err
	}
	if len(mem.Embedding) == 0 {
		vec, err := s.Embed(ctx, mem.Content)
		if err != nil {
			return err
		}
		mem.Embedding = vec
	}
	if len(mem.Embedding) != s.embedder.Dimensions() {
		return &ValidationError{
			Field:  "embedding",
			Reason: fmt.Sprintf("dimension %d does not match embedder dimension %d", len(mem.Embedding), s.embedder.Dimensions()),
		}
	}
	return s.upsert(ctx, mem)
}

// AddMemories attempts each memory independently. Partial success is
// expected: it returns the inserted IDs plus one BatchFailure per
// rejected item, never an error.
func (s *LongTermStore) AddMemories(ctx context.Context, memories []*Memory) ([]string, []BatchFailure) {
	var inserted []string
	var failures []BatchFailure
	for _, mem := range memories {
		if err := s.AddMemory(ctx, mem); err != nil {
			failures = append(failures, BatchFailure{Memory: mem, Err: err})
			continue
		}
		inserted = append(inserted, mem.ID)
	}
	return inserted, failures
}

// RetrieveRelevant embeds the query, searches the user's partition and
// returns the top n memories ranked by
//
//	score = w_sim*similarity + w_imp*importance
//
// with ties broken by newer CreatedAt. No match is not an error: the
// result is simply empty.
func (s *LongTermStore) RetrieveRelevant(ctx context.Context, userID, query string, n int, opts RetrieveOptions) ([]*Memory, error) {
	if n <= 0 {
		return nil, nil
	}
	vec, err := s.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	// Over-fetch so post-filtering by type/importance still fills n.
	matches, err := s.query(ctx, userID, vec, n*4)
	if err != nil {
		return nil, err
	}

	type scored struct {
		mem   *Memory
		score float64
	}
	var results []scored
	for _, match := range matches {
		mem := memoryFromEntry(match.Entry)
		if !opts.matches(mem) {
			continue
		}
		score := s.config.Weights.Similarity*match.Similarity + s.config.Weights.Importance*mem.Importance
		results = append(results, scored{mem: mem, score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].mem.CreatedAt.After(results[j].mem.CreatedAt)
	})
	if len(results) > n {
		results = results[:n]
	}

	out := make([]*Memory, 0, len(results))
	for _, r := range results {
		s.touch(ctx, r.mem)
		out = append(out, r.mem)
	}
	return out, nil
}

// Nearest returns the most similar stored memory of the given type, or
// nil when the user has none. Consolidation uses it for the dedup
// lookup before every insert.
func (s *LongTermStore) Nearest(ctx context.Context, userID string, vector []float32, memType MemoryType) (*Memory, float64, error) {
	// Over-fetch across all types so a same-type match cannot be
	// crowded out of the window by more similar memories of other
	// types.
	matches, err := s.query(ctx, userID, vector, 8*len(Types()))
	if err != nil {
		return nil, 0, err
	}
	for _, match := range matches {
		if match.Entry.Type == memType {
			return memoryFromEntry(match.Entry), match.Similarity, nil
		}
	}
	return nil, 0, nil
}

// UserMemories lists every memory for the user matching the optional
// type filter, oldest first. Used for profile aggregation and export.
func (s *LongTermStore) UserMemories(ctx context.Context, userID string, types ...MemoryType) ([]*Memory, error) {
	entries, err := backoff.Retry(ctx, func() ([]IndexEntry, error) {
		return s.index.List(ctx, userID)
	}, s.retryOpts()...)
	if err != nil {
		return nil, &TransientStoreError{Op: "list", Err: err}
	}

	filter := RetrieveOptions{Types: types}
	var out []*Memory
	for _, entry := range entries {
		mem := memoryFromEntry(entry)
		if filter.matches(mem) {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteMemory removes one memory. A missing ID yields NotFoundError
// and leaves the store unchanged; repeating the call after success
// yields NotFoundError again, never a crash.
func (s *LongTermStore) DeleteMemory(ctx context.Context, userID, id string) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.index.Delete(ctx, userID, id)
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, s.retryOpts()...)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nf
		}
		return &TransientStoreError{Op: "delete", Err: err}
	}
	return nil
}

// Upsert writes a fully-formed memory, overwriting any previous record
// with the same (user_id, id). Consolidation merges go through here.
func (s *LongTermStore) Upsert(ctx context.Context, mem *Memory) error {
	if err := mem.Validate(); err != nil {
		return err
	}
	return s.upsert(ctx, mem)
}

func (s *LongTermStore) upsert(ctx context.Context, mem *Memory) error {
	entry := entryFromMemory(mem)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.index.Upsert(ctx, mem.UserID, entry)
	}, s.retryOpts()...)
	if err != nil {
		return &TransientStoreError{Op: "upsert", Err: err}
	}
	return nil
}

func (s *LongTermStore) query(ctx context.Context, userID string, vector []float32, k int) ([]IndexMatch, error) {
	matches, err := backoff.Retry(ctx, func() ([]IndexMatch, error) {
		return s.index.Query(ctx, userID, vector, k)
	}, s.retryOpts()...)
	if err != nil {
		return nil, &TransientStoreError{Op: "query", Err: err}
	}
	return matches, nil
}

// touch records the access and writes it back best-effort. Retrieval
// results are never dropped because bookkeeping failed.
func (s *LongTermStore) touch(ctx context.Context, mem *Memory) {
	mem.AccessCount++
	mem.LastAccessed = time.Now()
	if err := s.index.Upsert(ctx, mem.UserID, entryFromMemory(mem)); err != nil {
		log.Printf("[MEMORY] access bookkeeping for %s failed: %v", mem.ID, err)
	}
}

func (s *LongTermStore) retryOpts() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.RetryInterval
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.config.MaxRetries),
	}
}

func (o RetrieveOptions) matches(mem *Memory) bool {
	if mem.Importance < o.MinImportance {
		return false
	}
	if len(o.Types) == 0 {
		return true
	}
	for _, t := range o.Types {
		if mem.Type == t {
			return true
		}
	}
	return false
}

func entryFromMemory(mem *Memory) IndexEntry {
	return IndexEntry{
		ID:           mem.ID,
		UserID:       mem.UserID,
		Content:      mem.Content,
		Type:         mem.Type,
		Importance:   mem.Importance,
		Embedding:    mem.Embedding,
		CreatedAt:    mem.CreatedAt.UTC().Format(time.RFC3339Nano),
		LastAccessed: mem.LastAccessed.UTC().Format(time.RFC3339Nano),
		AccessCount:  mem.AccessCount,
	}
}

func memoryFromEntry(entry IndexEntry) *Memory {
	createdAt, _ := time.Parse(time.RFC3339Nano, entry.CreatedAt)
	lastAccessed, _ := time.Parse(time.RFC3339Nano, entry.LastAccessed)
	return &Memory{
		ID:           entry.ID,
		UserID:       entry.UserID,
		Content:      entry.Content,
		Type:         entry.Type,
		Importance:   entry.Importance,
		Embedding:    entry.Embedding,
		CreatedAt:    createdAt,
		LastAccessed: lastAccessed,
		AccessCount:  entry.AccessCount,
	}
}
