package memory

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/companionkit/memcore/core"
)

// SystemConfig holds the consolidation and composition tuning.
type SystemConfig struct {
	// DedupeThreshold is the similarity at or above which a candidate
	// merges into an existing memory instead of inserting.
	DedupeThreshold float64

	// PromotionThreshold is the heuristic importance at which a new
	// turn triggers immediate consolidation instead of waiting for the
	// batch. Advisory only; writes always flow through Consolidate.
	PromotionThreshold float64

	// BatchSize is the pending-turn count that triggers consolidation
	// regardless of importance.
	BatchSize int

	// ContextTurns is how many short-term turns a bundle includes.
	ContextTurns int

	// CallTimeout bounds every embedding/extraction/relationship call.
	CallTimeout time.Duration
}

// DefaultSystemConfig returns the defaults used when config is nil.
var DefaultSystemConfig = &SystemConfig{
	DedupeThreshold:    0.92,
	PromotionThreshold: 0.6,
	BatchSize:          5,
	ContextTurns:       5,
	CallTimeout:        10 * time.Second,
}

// System is the public surface of the memory core: it feeds turns into
// the short-term buffer, consolidates them into deduplicated long-term
// memories, and composes bounded context bundles for response
// generation. Operations for different users run concurrently; within
// one user the dedup-then-write sequence holds a per-user lock so two
// consolidations can never race a near-duplicate into the store.
type System struct {
	buffer    *ShortTermBuffer
	store     *LongTermStore
	extractor Extractor
	relations RelationshipProvider
	config    *SystemConfig

	mu    sync.Mutex
	users map[string]*userState
}

type userState struct {
	consolidating sync.Mutex
	pendingMu     sync.Mutex
	pending       []core.ConversationTurn
}

// Option configures the system.
type Option func(*System)

// WithExtractor replaces the default KeywordExtractor.
func WithExtractor(x Extractor) Option {
	return func(s *System) {
		if x != nil {
			s.extractor = x
		}
	}
}

// WithRelationships attaches a persona/affection metadata provider.
func WithRelationships(p RelationshipProvider) Option {
	return func(s *System) {
		s.relations = p
	}
}

// NewSystem creates the memory system over a buffer and a long-term
// store. A nil config uses DefaultSystemConfig.
func NewSystem(buffer *ShortTermBuffer, store *LongTermStore, config *SystemConfig, opts ...Option) *System {
	if config == nil {
		config = DefaultSystemConfig
	}
	s := &System{
		buffer:    buffer,
		store:     store,
		extractor: KeywordExtractor{},
		config:    config,
		users:     make(map[string]*userState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessTurn appends the exchange to the short-term buffer, marks it
// pending for consolidation and, when the promotion heuristic fires,
// consolidates immediately. Consolidation failures here are non-fatal:
// the turn stays pending for a later cycle.
func (s *System) ProcessTurn(ctx context.Context, userID string, turn core.ConversationTurn) error {
	if err := s.buffer.AddTurn(userID, turn); err != nil {
		return err
	}

	st := s.userState(userID)
	st.pendingMu.Lock()
	st.pending = append(st.pending, turn)
	pending := len(st.pending)
	st.pendingMu.Unlock()

	hot := ScoreImportance(turn.UserMessage) >= s.config.PromotionThreshold
	if hot || pending >= s.config.BatchSize {
		if err := s.Consolidate(ctx, userID); err != nil {
			log.Printf("[MEMORY] deferred consolidation for %s: %v", userID, err)
		}
	}
	return nil
}

// Consolidate runs one extraction-dedup-write cycle over the user's
// pending turns. At most one cycle runs per user at a time. Each
// candidate is written atomically (one merge or one insert); when the
// cycle aborts, already-written candidates stay, unprocessed ones are
// retried next cycle and no partial record exists.
func (s *System) Consolidate(ctx context.Context, userID string) error {
	st := s.userState(userID)
	st.consolidating.Lock()
	defer st.consolidating.Unlock()

	st.pendingMu.Lock()
	turns := make([]core.ConversationTurn, len(st.pending))
	copy(turns, st.pending)
	st.pendingMu.Unlock()
	if len(turns) == 0 {
		return nil
	}

	callCtx, cancel := s.callContext(ctx)
	candidates, err := s.extractor.Extract(callCtx, turns)
	cancel()
	if err != nil {
		var xerr *ExtractionServiceError
		if !errors.As(err, &xerr) {
			xerr = &ExtractionServiceError{Err: err}
		}
		log.Printf("[MEMORY] extraction failed for %s, turns stay pending: %v", userID, xerr)
		return xerr
	}

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.mergeOrInsert(ctx, userID, cand); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				log.Printf("[MEMORY] dropping invalid candidate for %s: %v", userID, verr)
				continue
			}
			log.Printf("[MEMORY] consolidation cycle for %s aborted: %v", userID, err)
			return err
		}
	}

	// Cycle complete: the consumed turns are no longer pending. Turns
	// added while the cycle ran stay for the next one.
	st.pendingMu.Lock()
	st.pending = st.pending[min(len(turns), len(st.pending)):]
	st.pendingMu.Unlock()

	log.Printf("[MEMORY] consolidated %d turns into %d candidates for %s", len(turns), len(candidates), userID)
	return nil
}

// AddExplicitMemory inserts collaborator-provided knowledge, bypassing
// extraction but not the dedup-merge check.
func (s *System) AddExplicitMemory(ctx context.Context, userID, content string, memType MemoryType, importance float64) error {
	if _, err := NewMemory(userID, content, memType, importance); err != nil {
		return err
	}

	st := s.userState(userID)
	st.consolidating.Lock()
	defer st.consolidating.Unlock()

	return s.mergeOrInsert(ctx, userID, Candidate{
		Content:    content,
		Type:       memType,
		Importance: importance,
	})
}

// mergeOrInsert is the dedup-then-write step. The caller holds the
// user's consolidation lock.
func (s *System) mergeOrInsert(ctx context.Context, userID string, cand Candidate) error {
	mem, err := NewMemory(userID, cand.Content, cand.Type, cand.Importance)
	if err != nil {
		return err
	}

	callCtx, cancel := s.callContext(ctx)
	vec, err := s.store.Embed(callCtx, mem.Content)
	cancel()
	if err != nil {
		return err
	}
	mem.Embedding = vec

	nearest, sim, err := s.store.Nearest(ctx, userID, vec, mem.Type)
	if err != nil {
		return err
	}
	if nearest != nil && sim >= s.config.DedupeThreshold {
		nearest.Importance = max(nearest.Importance, mem.Importance)
		nearest.AccessCount++
		nearest.LastAccessed = time.Now()
		return s.store.Upsert(ctx, nearest)
	}
	// AccessCount tracks sightings of the fact; the insert is the first.
	mem.AccessCount = 1
	return s.store.AddMemory(ctx, mem)
}

// ContextForResponse assembles the bounded bundle for one generation
// call. It never fails: when the long-term store is unreachable the
// bundle degrades to short-term content and is marked Degraded.
func (s *System) ContextForResponse(ctx context.Context, userID, currentMessage string, includeShortTerm, includeLongTerm bool, nLongTerm int) *ContextBundle {
	bundle := &ContextBundle{UserID: userID}

	if includeShortTerm {
		bundle.Turns = s.buffer.RecentContext(userID, s.config.ContextTurns)
	}

	if includeLongTerm && nLongTerm > 0 {
		memories, err := s.store.RetrieveRelevant(ctx, userID, currentMessage, nLongTerm, RetrieveOptions{})
		if err != nil {
			log.Printf("[MEMORY] long-term retrieval for %s degraded to short-term only: %v", userID, err)
			bundle.Degraded = true
		} else {
			bundle.Memories = memories
		}
	}

	if s.relations != nil {
		callCtx, cancel := s.callContext(ctx)
		rel, err := s.relations.Relationship(callCtx, userID)
		cancel()
		if err != nil {
			log.Printf("[MEMORY] relationship metadata for %s unavailable: %v", userID, err)
		} else {
			bundle.Relationship = &rel
		}
	}

	return bundle
}

// Store exposes the long-term store for direct reads and deletes,
// e.g. a privacy endpoint removing a memory on user request.
func (s *System) Store() *LongTermStore {
	return s.store
}

// UserProfile projects the user's stored memories into the four
// categorized buckets. Read-only; no access bookkeeping happens.
func (s *System) UserProfile(ctx context.Context, userID string) (*Profile, error) {
	memories, err := s.store.UserMemories(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := &Profile{}
	for _, mem := range memories {
		profile.add(mem)
	}
	return profile, nil
}

// ClearShortTerm drops the user's buffered turns and pending
// consolidation input. Idempotent.
func (s *System) ClearShortTerm(userID string) {
	s.buffer.Clear(userID)
	st := s.userState(userID)
	st.pendingMu.Lock()
	st.pending = nil
	st.pendingMu.Unlock()
}

// UsersWithPending lists users whose turns await consolidation. The
// scheduler drives its periodic cycles off this.
func (s *System) UsersWithPending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []string
	for userID, st := range s.users {
		st.pendingMu.Lock()
		if len(st.pending) > 0 {
			users = append(users, userID)
		}
		st.pendingMu.Unlock()
	}
	return users
}

// EvictIdleBuffers reclaims short-term state for inactive users.
func (s *System) EvictIdleBuffers(maxIdle time.Duration) int {
	return s.buffer.EvictInactive(maxIdle)
}

func (s *System) userState(userID string) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[userID]
	if !ok {
		st = &userState{}
		s.users[userID] = st
	}
	return st
}

func (s *System) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.CallTimeout)
}
