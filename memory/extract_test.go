package memory_test

import (
	"context"
	"testing"

	"github.com/companionkit/memcore/core"
	"github.com/companionkit/memcore/memory"
)

func TestKeywordExtractor_KeepsMemorableSentencesOnly(t *testing.T) {
	turns := []core.ConversationTurn{
		turn("u1", "My name is Ana. The weather is nice today.", "Nice to meet you, Ana."),
	}

	candidates, err := memory.KeywordExtractor{}.Extract(context.Background(), turns)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(candidates), candidates)
	}
	if candidates[0].Content != "My name is Ana" {
		t.Errorf("content = %q, want %q", candidates[0].Content, "My name is Ana")
	}
	if candidates[0].Type != memory.TypeFact {
		t.Errorf("type = %q, want fact", candidates[0].Type)
	}
}

func TestKeywordExtractor_Classification(t *testing.T) {
	cases := []struct {
		message string
		want    memory.MemoryType
	}{
		{"I love sushi more than anything", memory.TypePreference},
		{"my birthday is in May", memory.TypeEvent},
		{"I feel so sad about work lately", memory.TypeEmotion},
		{"I work at a hospital", memory.TypeFact},
	}
	for _, tc := range cases {
		candidates, err := memory.KeywordExtractor{}.Extract(context.Background(), []core.ConversationTurn{
			turn("u1", tc.message, "okay"),
		})
		if err != nil {
			t.Fatalf("extract %q: %v", tc.message, err)
		}
		if len(candidates) != 1 {
			t.Fatalf("%q yielded %d candidates, want 1", tc.message, len(candidates))
		}
		if candidates[0].Type != tc.want {
			t.Errorf("%q classified as %q, want %q", tc.message, candidates[0].Type, tc.want)
		}
	}
}

func TestKeywordExtractor_CapsCandidatesPerTurn(t *testing.T) {
	msg := "I like tea. I like jazz. I like rain. I like dogs. I like books."
	candidates, err := memory.KeywordExtractor{}.Extract(context.Background(), []core.ConversationTurn{
		turn("u1", msg, "quite a list"),
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(candidates) > 3 {
		t.Fatalf("got %d candidates from one turn, want at most 3", len(candidates))
	}
}

func TestKeywordExtractor_DeduplicatesAcrossTurns(t *testing.T) {
	turns := []core.ConversationTurn{
		turn("u1", "I like tea", "noted"),
		turn("u1", "I like tea", "you said"),
	}
	candidates, err := memory.KeywordExtractor{}.Extract(context.Background(), turns)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want the repeated sentence once", len(candidates))
	}
}

func TestScoreImportance(t *testing.T) {
	cases := []struct {
		content string
		want    float64
	}{
		{"ok", 0.5},
		{"I am a nurse", 0.8},
		{"everyone seems to love that show", 0.7},
		{"I am so happy that the whole family is coming to visit us", 1.0},
	}
	for _, tc := range cases {
		if got := memory.ScoreImportance(tc.content); got != tc.want {
			t.Errorf("ScoreImportance(%q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}
