package memory_test

import (
	"errors"
	"testing"

	"github.com/companionkit/memcore/memory"
)

func TestParseMemoryType(t *testing.T) {
	for _, valid := range []string{"fact", "preference", "event", "emotion", " Fact ", "PREFERENCE"} {
		if _, err := memory.ParseMemoryType(valid); err != nil {
			t.Errorf("ParseMemoryType(%q) = %v, want nil", valid, err)
		}
	}

	for _, invalid := range []string{"", "conversation", "facts", "unknown"} {
		_, err := memory.ParseMemoryType(invalid)
		var verr *memory.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("ParseMemoryType(%q) = %v, want ValidationError", invalid, err)
		}
	}
}

func TestNewMemory_Validation(t *testing.T) {
	if _, err := memory.NewMemory("u1", "", memory.TypeFact, 0.5); err == nil {
		t.Error("expected error for empty content")
	}
	if _, err := memory.NewMemory("u1", "   ", memory.TypeFact, 0.5); err == nil {
		t.Error("expected error for whitespace content")
	}
	if _, err := memory.NewMemory("u1", "has a dog", "journal", 0.5); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestNewMemory_ClampsImportance(t *testing.T) {
	mem, err := memory.NewMemory("u1", "has a dog", memory.TypeFact, 1.7)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	if mem.Importance != 1.0 {
		t.Errorf("importance = %v, want clamped to 1.0", mem.Importance)
	}

	mem, err = memory.NewMemory("u1", "has a dog", memory.TypeFact, -0.3)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	if mem.Importance != 0.0 {
		t.Errorf("importance = %v, want clamped to 0.0", mem.Importance)
	}
}

func TestMemoryID_StablePerUserAndContent(t *testing.T) {
	a := memory.MemoryID("u1", "likes hotpot")
	b := memory.MemoryID("u1", " likes hotpot ")
	if a != b {
		t.Errorf("IDs differ for trimmed content: %s vs %s", a, b)
	}
	if memory.MemoryID("u2", "likes hotpot") == a {
		t.Error("IDs should differ across users")
	}
	if memory.MemoryID("u1", "likes sushi") == a {
		t.Error("IDs should differ across contents")
	}
}

func TestMemoryValidate_ImportanceBounds(t *testing.T) {
	mem, err := memory.NewMemory("u1", "has a dog", memory.TypeFact, 0.5)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	mem.Importance = 1.2
	var verr *memory.ValidationError
	if err := mem.Validate(); !errors.As(err, &verr) {
		t.Errorf("Validate with importance 1.2 = %v, want ValidationError", err)
	}
}
