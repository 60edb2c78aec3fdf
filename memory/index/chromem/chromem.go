// Package chromem implements the memory.VectorIndex contract on
// chromem-go, a pure Go embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/companionkit/memcore/memory"
)

// Index stores each user's memories in their own chromem collection so
// similarity search can never cross the user partition. An in-process
// entry map per user backs listing and upsert bookkeeping, which
// chromem's query-only API does not cover.
type Index struct {
	db *chromem.DB

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	entries     map[string]map[string]memory.IndexEntry // userID -> id -> entry
}

// New creates an in-memory index.
func New() (*Index, error) {
	return &Index{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		entries:     make(map[string]map[string]memory.IndexEntry),
	}, nil
}

// NewPersistent creates an index backed by an on-disk chromem database.
// The listing map starts empty on restart; deployments that need
// durable recall should swap in a server-backed VectorIndex.
func NewPersistent(path string) (*Index, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open persistent db: %w", err)
	}
	return &Index{
		db:          db,
		collections: make(map[string]*chromem.Collection),
		entries:     make(map[string]map[string]memory.IndexEntry),
	}, nil
}

// collection returns the user's collection, creating it on first use.
func (i *Index) collection(userID string) (*chromem.Collection, error) {
	i.mu.RLock()
	col, ok := i.collections[userID]
	i.mu.RUnlock()
	if ok {
		return col, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if col, ok := i.collections[userID]; ok {
		return col, nil
	}

	name := "user_" + userID
	if userID == "" {
		name = "global"
	}
	col, err := i.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	i.collections[userID] = col
	if i.entries[userID] == nil {
		i.entries[userID] = make(map[string]memory.IndexEntry)
	}
	return col, nil
}

// Upsert writes one entry, replacing any previous entry with the same
// ID. Either the previous entry or the new one is visible afterwards,
// never a partial record.
func (i *Index) Upsert(ctx context.Context, userID string, entry memory.IndexEntry) error {
	col, err := i.collection(userID)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	prev, existed := i.entries[userID][entry.ID]
	if existed {
		if err := col.Delete(ctx, nil, nil, entry.ID); err != nil {
			return fmt.Errorf("replace document: %w", err)
		}
	}
	if err := col.AddDocument(ctx, toDocument(entry)); err != nil {
		if existed {
			// Put the previous record back so the replace stays atomic.
			if restoreErr := col.AddDocument(ctx, toDocument(prev)); restoreErr != nil {
				return fmt.Errorf("add document: %w (restore also failed: %v)", err, restoreErr)
			}
		}
		return fmt.Errorf("add document: %w", err)
	}
	if i.entries[userID] == nil {
		i.entries[userID] = make(map[string]memory.IndexEntry)
	}
	i.entries[userID][entry.ID] = entry
	return nil
}

// Query returns up to k entries ranked by cosine similarity.
func (i *Index) Query(ctx context.Context, userID string, vector []float32, k int) ([]memory.IndexMatch, error) {
	col, err := i.collection(userID)
	if err != nil {
		return nil, err
	}

	i.mu.RLock()
	stored := len(i.entries[userID])
	i.mu.RUnlock()

	// chromem rejects nResults beyond the collection size.
	if k > stored {
		k = stored
	}
	if k <= 0 {
		return nil, nil
	}

	where := map[string]string{"user_id": userID}
	results, err := col.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	matches := make([]memory.IndexMatch, 0, len(results))
	for _, result := range results {
		entry, ok := i.entries[userID][result.ID]
		if !ok {
			continue
		}
		matches = append(matches, memory.IndexMatch{
			Entry:      entry,
			Similarity: float64(result.Similarity),
		})
	}
	return matches, nil
}

// List returns every entry for the user, unranked.
func (i *Index) List(ctx context.Context, userID string) ([]memory.IndexEntry, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	entries := make([]memory.IndexEntry, 0, len(i.entries[userID]))
	for _, entry := range i.entries[userID] {
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes one entry. A missing ID is a NotFoundError and the
// index stays unchanged.
func (i *Index) Delete(ctx context.Context, userID, id string) error {
	col, err := i.collection(userID)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.entries[userID][id]; !ok {
		return &memory.NotFoundError{UserID: userID, ID: id}
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	delete(i.entries[userID], id)
	return nil
}

// Close releases resources. chromem keeps everything in process, so
// there is nothing to flush.
func (i *Index) Close() error {
	return nil
}

func toDocument(entry memory.IndexEntry) chromem.Document {
	return chromem.Document{
		ID:        entry.ID,
		Content:   entry.Content,
		Embedding: entry.Embedding,
		Metadata: map[string]string{
			"user_id":       entry.UserID,
			"memory_type":   string(entry.Type),
			"importance":    strconv.FormatFloat(entry.Importance, 'f', -1, 64),
			"created_at":    entry.CreatedAt,
			"last_accessed": entry.LastAccessed,
			"access_count":  strconv.Itoa(entry.AccessCount),
		},
	}
}
