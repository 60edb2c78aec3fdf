package memory_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/companionkit/memcore/core"
	"github.com/companionkit/memcore/memory"
)

func turn(userID, userMsg, botMsg string, topics ...string) core.ConversationTurn {
	return core.NewConversationTurn(userID, userMsg, botMsg, nil, topics)
}

func TestShortTermBuffer_BoundAndOrder(t *testing.T) {
	buf := memory.NewShortTermBuffer(3)

	for _, msg := range []string{"A", "B", "C", "D"} {
		if err := buf.AddTurn("u1", turn("u1", msg, "ok")); err != nil {
			t.Fatalf("AddTurn(%s): %v", msg, err)
		}
	}

	if got := buf.Len("u1"); got != 3 {
		t.Errorf("Len = %d, want 3", got)
	}

	turns := buf.RecentContext("u1", 4)
	if len(turns) != 3 {
		t.Fatalf("RecentContext returned %d turns, want 3", len(turns))
	}
	for i, want := range []string{"B", "C", "D"} {
		if turns[i].UserMessage != want {
			t.Errorf("turn %d = %q, want %q", i, turns[i].UserMessage, want)
		}
	}
}

func TestShortTermBuffer_RejectsEmptyMessages(t *testing.T) {
	buf := memory.NewShortTermBuffer(3)

	var verr *memory.ValidationError
	if err := buf.AddTurn("u1", turn("u1", "", "ok")); !errors.As(err, &verr) {
		t.Errorf("empty user message: got %v, want ValidationError", err)
	}
	if err := buf.AddTurn("u1", turn("u1", "hi", "  ")); !errors.As(err, &verr) {
		t.Errorf("empty bot response: got %v, want ValidationError", err)
	}
	if got := buf.Len("u1"); got != 0 {
		t.Errorf("rejected turns were buffered: Len = %d", got)
	}
}

func TestShortTermBuffer_UnknownUser(t *testing.T) {
	buf := memory.NewShortTermBuffer(3)
	if turns := buf.RecentContext("nobody", 5); len(turns) != 0 {
		t.Errorf("expected empty context for unknown user, got %d turns", len(turns))
	}
	if topics := buf.Topics("nobody", 5); len(topics) != 0 {
		t.Errorf("expected no topics for unknown user, got %v", topics)
	}
	buf.Clear("nobody") // must not panic
}

func TestShortTermBuffer_TopicsRecencyOrder(t *testing.T) {
	buf := memory.NewShortTermBuffer(5)

	buf.AddTurn("u1", turn("u1", "m1", "r1", "cooking", "travel"))
	buf.AddTurn("u1", turn("u1", "m2", "r2", "music"))
	buf.AddTurn("u1", turn("u1", "m3", "r3", "travel", "pets"))

	topics := buf.Topics("u1", 3)
	want := []string{"travel", "pets", "music", "cooking"}
	if len(topics) != len(want) {
		t.Fatalf("Topics = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("Topics[%d] = %q, want %q", i, topics[i], want[i])
		}
	}
}

func TestShortTermBuffer_ClearIsIdempotent(t *testing.T) {
	buf := memory.NewShortTermBuffer(3)
	buf.AddTurn("u1", turn("u1", "hello", "hi"))

	buf.Clear("u1")
	if got := buf.Len("u1"); got != 0 {
		t.Errorf("Len after Clear = %d, want 0", got)
	}
	buf.Clear("u1")
	if got := buf.Len("u1"); got != 0 {
		t.Errorf("Len after second Clear = %d, want 0", got)
	}
}

func TestShortTermBuffer_EvictInactive(t *testing.T) {
	buf := memory.NewShortTermBuffer(3)
	buf.AddTurn("u1", turn("u1", "hello", "hi"))

	if evicted := buf.EvictInactive(time.Hour); evicted != 0 {
		t.Errorf("evicted %d fresh buffers, want 0", evicted)
	}
	if evicted := buf.EvictInactive(0); evicted != 1 {
		t.Errorf("evicted %d stale buffers, want 1", evicted)
	}
	if got := buf.Len("u1"); got != 0 {
		t.Errorf("Len after eviction = %d, want 0", got)
	}
}

func TestShortTermBuffer_ContextString(t *testing.T) {
	buf := memory.NewShortTermBuffer(3)
	if s := buf.ContextString("u1", 5); s != "" {
		t.Errorf("expected empty context string, got %q", s)
	}

	buf.AddTurn("u1", turn("u1", "hello", "hi there"))
	s := buf.ContextString("u1", 5)
	if s == "" {
		t.Fatal("expected non-empty context string")
	}
	for _, want := range []string{"User: hello", "You: hi there"} {
		if !strings.Contains(s, want) {
			t.Errorf("context string missing %q:\n%s", want, s)
		}
	}
}
