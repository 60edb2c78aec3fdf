package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// MemoryType classifies a durable memory. The set is closed: unknown
// tags are rejected at the boundary instead of being stored as free
// strings.
type MemoryType string

const (
	TypeFact       MemoryType = "fact"
	TypePreference MemoryType = "preference"
	TypeEvent      MemoryType = "event"
	TypeEmotion    MemoryType = "emotion"
)

// Types lists all valid memory types in profile-bucket order.
func Types() []MemoryType {
	return []MemoryType{TypeFact, TypePreference, TypeEvent, TypeEmotion}
}

// ParseMemoryType validates a type tag coming from an extractor or an
// external caller.
func ParseMemoryType(s string) (MemoryType, error) {
	switch t := MemoryType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeFact, TypePreference, TypeEvent, TypeEmotion:
		return t, nil
	default:
		return "", &ValidationError{Field: "memory_type", Reason: fmt.Sprintf("unknown type %q", s)}
	}
}

// Memory is the canonical unit of durable knowledge about one user.
// A memory's Type never changes after creation; corrections are new
// memories plus an optional merge. Only access bookkeeping and
// consolidation merges mutate an existing record.
type Memory struct {
	// ID is unique within the owning user's namespace. It is derived
	// from the content, so re-extracting the same fact maps to the
	// same record.
	ID string

	// UserID scopes the memory. Index reads and writes always carry it.
	UserID string

	// Content is the distilled statement. Never empty.
	Content string

	// Type is one of fact, preference, event, emotion.
	Type MemoryType

	// Importance weights ranking and merge decisions, clamped to [0,1].
	Importance float64

	// Embedding is the content vector. Its dimension matches the
	// configured embedder for the lifetime of a store.
	Embedding []float32

	CreatedAt    time.Time
	LastAccessed time.Time

	// AccessCount tracks retrieval and merge hits.
	AccessCount int
}

// NewMemory builds a validated memory with a content-derived ID.
func NewMemory(userID, content string, memType MemoryType, importance float64) (*Memory, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if _, err := ParseMemoryType(string(memType)); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Memory{
		ID:           MemoryID(userID, content),
		UserID:       userID,
		Content:      content,
		Type:         memType,
		Importance:   ClampImportance(importance),
		CreatedAt:    now,
		LastAccessed: now,
	}, nil
}

// MemoryID derives the per-user record ID from the content.
func MemoryID(userID, content string) string {
	sum := sha256.Sum256([]byte(userID + ":" + strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])[:16]
}

// ClampImportance forces an importance score into [0,1].
func ClampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Validate checks the invariants a memory must satisfy before it may
// be written.
func (m *Memory) Validate() error {
	if strings.TrimSpace(m.Content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if m.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if _, err := ParseMemoryType(string(m.Type)); err != nil {
		return err
	}
	if m.Importance < 0 || m.Importance > 1 {
		return &ValidationError{Field: "importance", Reason: fmt.Sprintf("%v outside [0,1]", m.Importance)}
	}
	return nil
}
