package memory

import (
	"strings"

	"github.com/companionkit/memcore/core"
)

// ContextBundle is the bounded material assembled for a single
// response-generation call: recent raw turns, the top-ranked relevant
// memories, and opaque relationship metadata.
type ContextBundle struct {
	UserID string

	// Turns are the recent exchanges, oldest first.
	Turns []core.ConversationTurn

	// Memories are the relevant long-term memories, best first.
	Memories []*Memory

	// Relationship is persona/affection metadata, attached verbatim
	// when a RelationshipProvider is configured.
	Relationship *core.Relationship

	// Degraded is set when the long-term store was unavailable and the
	// bundle fell back to short-term content only.
	Degraded bool
}

// PromptText renders the bundle as a block ready for prompt injection.
func (b *ContextBundle) PromptText() string {
	var parts []string

	if len(b.Turns) > 0 {
		var sb strings.Builder
		sb.WriteString("=== RECENT CONVERSATION ===\n")
		for _, turn := range b.Turns {
			sb.WriteString("User: " + turn.UserMessage + "\n")
			sb.WriteString("You: " + turn.BotResponse + "\n")
		}
		parts = append(parts, sb.String())
	}

	if len(b.Memories) > 0 {
		var sb strings.Builder
		sb.WriteString("=== RELEVANT MEMORIES ===\n")
		for _, mem := range b.Memories {
			sb.WriteString("- " + mem.Content + "\n")
		}
		parts = append(parts, sb.String())
	}

	if b.Relationship != nil {
		parts = append(parts, "=== RELATIONSHIP ===\nLevel: "+b.Relationship.Level+"\nMood: "+b.Relationship.Mood+"\n")
	}

	return strings.Join(parts, "\n")
}

// Profile is the categorized read-only view over a user's stored
// memories. Every memory lands in exactly one bucket.
type Profile struct {
	Facts       []string
	Preferences []string
	Events      []string
	Emotions    []string
}

func (p *Profile) add(mem *Memory) {
	switch mem.Type {
	case TypeFact:
		p.Facts = append(p.Facts, mem.Content)
	case TypePreference:
		p.Preferences = append(p.Preferences, mem.Content)
	case TypeEvent:
		p.Events = append(p.Events, mem.Content)
	case TypeEmotion:
		p.Emotions = append(p.Emotions, mem.Content)
	}
}
