package memory

import (
	"context"
	"strings"

	"github.com/companionkit/memcore/core"
)

// memoryKeywords gate which sentences are worth keeping at all.
var memoryKeywords = []string{
	"like", "love", "hate", "afraid", "want", "dream", "goal",
	"work", "study", "school", "family", "friend", "birthday",
	"anniversary", "name", "age", "live in", "come from", "hobby",
	"favorite", "allergic", "pet",
}

// firstPersonMarkers raise importance: statements about the user
// themselves are the most valuable to keep.
var firstPersonMarkers = []string{
	"i am", "i'm", "my name", "i live", "i work", "i study",
	"i have", "my favorite", "my birthday",
}

var emotionWords = []string{
	"love", "hate", "afraid", "scared", "dream", "happy", "sad", "angry", "excited",
}

// maxCandidatesPerTurn caps what a single exchange may contribute.
const maxCandidatesPerTurn = 3

// KeywordExtractor is the dependency-free Extractor: a keyword gate
// over sentence fragments with heuristic type and importance
// classification. It is the default when no LLM extractor is injected
// and the fallback while one is unavailable.
type KeywordExtractor struct{}

// Extract scans each turn's text for memorable sentences.
func (KeywordExtractor) Extract(ctx context.Context, turns []core.ConversationTurn) ([]Candidate, error) {
	var candidates []Candidate
	seen := make(map[string]struct{})

	for _, turn := range turns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		perTurn := 0
		for _, sentence := range splitSentences(turn.UserMessage + ". " + turn.BotResponse) {
			if perTurn >= maxCandidatesPerTurn {
				break
			}
			if len(sentence) < 6 || !containsAny(strings.ToLower(sentence), memoryKeywords) {
				continue
			}
			if _, dup := seen[sentence]; dup {
				continue
			}
			seen[sentence] = struct{}{}
			candidates = append(candidates, Candidate{
				Content:    sentence,
				Type:       classifyContent(sentence),
				Importance: ScoreImportance(sentence),
			})
			perTurn++
		}
	}
	return candidates, nil
}

// classifyContent assigns the closed memory type for a statement.
func classifyContent(content string) MemoryType {
	lower := strings.ToLower(content)
	switch {
	case containsAny(lower, []string{"like", "love", "favorite", "prefer", "hate"}):
		return TypePreference
	case containsAny(lower, []string{"birthday", "anniversary", "party", "wedding", "trip", "yesterday", "last week"}):
		return TypeEvent
	case containsAny(lower, []string{"happy", "sad", "angry", "afraid", "scared", "excited", "lonely"}):
		return TypeEmotion
	default:
		return TypeFact
	}
}

// ScoreImportance estimates how much a statement matters, in [0,1].
// First-person facts score highest, emotional content next, and longer
// statements get a small boost. Shared with ProcessTurn's promotion
// heuristic.
func ScoreImportance(content string) float64 {
	lower := strings.ToLower(content)
	importance := 0.5
	if containsAny(lower, firstPersonMarkers) {
		importance += 0.3
	}
	if containsAny(lower, emotionWords) {
		importance += 0.2
	}
	if len(content) > 50 {
		importance += 0.1
	}
	return ClampImportance(importance)
}

func splitSentences(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	var sentences []string
	for _, f := range fields {
		if t := strings.TrimSpace(f); t != "" {
			sentences = append(sentences, t)
		}
	}
	return sentences
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
