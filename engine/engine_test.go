package engine_test

import (
	"strings"
	"testing"

	"github.com/companionkit/memcore/core"
	"github.com/companionkit/memcore/engine"
	"github.com/companionkit/memcore/memory"
)

func TestBuildSystemPrompt_EmptyBundle(t *testing.T) {
	got := engine.BuildSystemPrompt("You are a test companion.", &memory.ContextBundle{UserID: "u1"})
	if got != "You are a test companion." {
		t.Fatalf("prompt = %q, want the bare persona when the bundle is empty", got)
	}
}

func TestBuildSystemPrompt_IncludesContext(t *testing.T) {
	bundle := &memory.ContextBundle{
		UserID: "u1",
		Turns: []core.ConversationTurn{
			core.NewConversationTurn("u1", "hello", "hi there", nil, nil),
		},
		Memories: []*memory.Memory{
			{Content: "likes hotpot", Type: memory.TypePreference},
		},
	}

	got := engine.BuildSystemPrompt("persona here", bundle)
	if !strings.HasPrefix(got, "persona here") {
		t.Errorf("prompt does not start with the persona:\n%s", got)
	}
	for _, want := range []string{"=== RECENT CONVERSATION ===", "User: hello", "=== RELEVANT MEMORIES ===", "likes hotpot"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildSystemPrompt_DefaultPersona(t *testing.T) {
	got := engine.BuildSystemPrompt("", &memory.ContextBundle{})
	if got != engine.DefaultPersona {
		t.Fatalf("prompt = %q, want the default persona", got)
	}
}
