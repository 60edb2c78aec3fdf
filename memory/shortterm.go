package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/companionkit/memcore/core"
)

// DefaultMaxTurns is the short-term window size per user.
const DefaultMaxTurns = 10

// ShortTermBuffer holds the rolling window of recent exchanges for
// each user. Turns are kept in chronological order; inserting past
// capacity evicts the oldest first. User entries are created lazily on
// first use and reclaimed by EvictInactive, which the scheduler runs
// periodically.
type ShortTermBuffer struct {
	maxTurns int

	mu    sync.RWMutex
	users map[string]*userBuffer
}

type userBuffer struct {
	turns    []core.ConversationTurn
	lastSeen time.Time
}

// NewShortTermBuffer creates a buffer with the given per-user capacity.
// maxTurns <= 0 falls back to DefaultMaxTurns.
func NewShortTermBuffer(maxTurns int) *ShortTermBuffer {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &ShortTermBuffer{
		maxTurns: maxTurns,
		users:    make(map[string]*userBuffer),
	}
}

// AddTurn appends a turn to the user's window, evicting the oldest
// turns once capacity is exceeded. Empty user or bot text is rejected.
func (b *ShortTermBuffer) AddTurn(userID string, turn core.ConversationTurn) error {
	if strings.TrimSpace(turn.UserMessage) == "" {
		return &ValidationError{Field: "user_message", Reason: "must not be empty"}
	}
	if strings.TrimSpace(turn.BotResponse) == "" {
		return &ValidationError{Field: "bot_response", Reason: "must not be empty"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ub, ok := b.users[userID]
	if !ok {
		ub = &userBuffer{}
		b.users[userID] = ub
	}
	ub.turns = append(ub.turns, turn)
	if len(ub.turns) > b.maxTurns {
		ub.turns = ub.turns[len(ub.turns)-b.maxTurns:]
	}
	ub.lastSeen = time.Now()
	return nil
}

// RecentContext returns the last min(n, length) turns in chronological
// (oldest-first) order. Unknown users get an empty slice.
func (b *ShortTermBuffer) RecentContext(userID string, n int) []core.ConversationTurn {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ub, ok := b.users[userID]
	if !ok || n <= 0 {
		return nil
	}
	turns := ub.turns
	if n < len(turns) {
		turns = turns[len(turns)-n:]
	}
	out := make([]core.ConversationTurn, len(turns))
	copy(out, turns)
	return out
}

// Topics returns the distinct topics across the last n turns, most
// recent turn first, each topic reported at its first occurrence in
// that order.
func (b *ShortTermBuffer) Topics(userID string, n int) []string {
	turns := b.RecentContext(userID, n)

	seen := make(map[string]struct{})
	var topics []string
	for i := len(turns) - 1; i >= 0; i-- {
		for _, topic := range turns[i].Topics {
			if _, ok := seen[topic]; ok {
				continue
			}
			seen[topic] = struct{}{}
			topics = append(topics, topic)
		}
	}
	return topics
}

// ContextString renders the last n turns as a prompt-ready block.
func (b *ShortTermBuffer) ContextString(userID string, n int) string {
	turns := b.RecentContext(userID, n)
	if len(turns) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("=== RECENT CONVERSATION ===\n")
	for _, turn := range turns {
		sb.WriteString("User: " + turn.UserMessage + "\n")
		sb.WriteString("You: " + turn.BotResponse + "\n")
	}
	return sb.String()
}

// Clear drops all buffered turns for the user. Idempotent.
func (b *ShortTermBuffer) Clear(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.users, userID)
}

// Len reports the current window length for the user.
func (b *ShortTermBuffer) Len(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if ub, ok := b.users[userID]; ok {
		return len(ub.turns)
	}
	return 0
}

// EvictInactive removes buffers untouched for longer than maxIdle and
// returns how many users were evicted. This is the only pruning the
// buffer does; the scheduler runs it so inactive users do not grow the
// registry without bound.
func (b *ShortTermBuffer) EvictInactive(maxIdle time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	evicted := 0
	for userID, ub := range b.users {
		if ub.lastSeen.Before(cutoff) {
			delete(b.users, userID)
			evicted++
		}
	}
	return evicted
}
