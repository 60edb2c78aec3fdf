// Package tools exposes the memory system's operations as Claude tool
// definitions, so the model can read and edit what it knows about the
// user mid-conversation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/companionkit/memcore/memory"
)

// Registry binds the memory tool set to one memory.System. Every
// execution is scoped to the calling user; the model never addresses
// another user's partition.
type Registry struct {
	system *memory.System
}

// NewRegistry creates the tool registry over the given system.
func NewRegistry(system *memory.System) *Registry {
	return &Registry{system: system}
}

// Definitions returns the API tool definitions for a Messages request.
func (r *Registry) Definitions() []anthropic.ToolUnionParam {
	defs := []struct {
		name        string
		description string
		schema      map[string]interface{}
	}{
		{
			name:        "remember",
			description: "Save a lasting fact about the user. Use it when the user shares something worth recalling in later conversations, like their name, preferences, plans or feelings.",
			schema: ObjectSchema(map[string]interface{}{
				"content":    StringProperty("The statement to remember, phrased as a short standalone sentence (e.g. 'works as a nurse')."),
				"category":   StringEnumProperty("What kind of knowledge this is", "fact", "preference", "event", "emotion"),
				"importance": NumberProperty("Optional: how much this matters, from 0 to 1 (default: 0.5)"),
			}, "content", "category"),
		},
		{
			name:        "recall_memories",
			description: "Search the user's stored memories by topic. Returns the most relevant memories first.",
			schema: ObjectSchema(map[string]interface{}{
				"query": StringProperty("What to look for (e.g. 'family', 'food preferences')"),
				"limit": IntegerProperty("Number of memories to return (default: 5)"),
			}, "query"),
		},
		{
			name:        "get_profile",
			description: "Get everything stored about the user, grouped into facts, preferences, events and emotions.",
			schema:      ObjectSchema(map[string]interface{}{}),
		},
		{
			name:        "forget_memory",
			description: "Delete one stored memory at the user's request. The content must match the stored statement exactly; use recall_memories first to find it.",
			schema: ObjectSchema(map[string]interface{}{
				"content": StringProperty("The exact stored statement to delete"),
			}, "content"),
		},
	}

	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema, err := encodeSchema(def.schema)
		if err != nil {
			// Schemas are static; a marshal failure is a programming error.
			panic(fmt.Sprintf("tool %s schema: %v", def.name, err))
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        def.name,
			Description: anthropic.String(def.description),
			InputSchema: schema,
		}})
	}
	return out
}

// Execute runs one tool call for the given user and returns the text
// to hand back to the model as the tool result.
func (r *Registry) Execute(ctx context.Context, userID, name string, input json.RawMessage) (string, error) {
	switch name {
	case "remember":
		return r.remember(ctx, userID, input)
	case "recall_memories":
		return r.recall(ctx, userID, input)
	case "get_profile":
		return r.profile(ctx, userID)
	case "forget_memory":
		return r.forget(ctx, userID, input)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (r *Registry) remember(ctx context.Context, userID string, input json.RawMessage) (string, error) {
	var args struct {
		Content    string   `json:"content"`
		Category   string   `json:"category"`
		Importance *float64 `json:"importance"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid tool input: %w", err)
	}
	memType, err := memory.ParseMemoryType(args.Category)
	if err != nil {
		return "", err
	}
	importance := 0.5
	if args.Importance != nil {
		importance = memory.ClampImportance(*args.Importance)
	}
	if err := r.system.AddExplicitMemory(ctx, userID, args.Content, memType, importance); err != nil {
		return "", err
	}
	return fmt.Sprintf("Remembered: %s", strings.TrimSpace(args.Content)), nil
}

func (r *Registry) recall(ctx context.Context, userID string, input json.RawMessage) (string, error) {
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid tool input: %w", err)
	}
	if args.Limit <= 0 {
		args.Limit = 5
	}
	memories, err := r.system.Store().RetrieveRelevant(ctx, userID, args.Query, args.Limit, memory.RetrieveOptions{})
	if err != nil {
		return "", err
	}
	if len(memories) == 0 {
		return "No stored memories match that.", nil
	}

	type hit struct {
		Content    string  `json:"content"`
		Category   string  `json:"category"`
		Importance float64 `json:"importance"`
	}
	hits := make([]hit, 0, len(memories))
	for _, mem := range memories {
		hits = append(hits, hit{
			Content:    mem.Content,
			Category:   string(mem.Type),
			Importance: mem.Importance,
		})
	}
	data, err := json.Marshal(hits)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *Registry) profile(ctx context.Context, userID string) (string, error) {
	profile, err := r.system.UserProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *Registry) forget(ctx context.Context, userID string, input json.RawMessage) (string, error) {
	var args struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid tool input: %w", err)
	}
	id := memory.MemoryID(userID, args.Content)
	if err := r.system.Store().DeleteMemory(ctx, userID, id); err != nil {
		return "", err
	}
	return "Forgotten.", nil
}

// encodeSchema converts a schema map into the API's typed form.
func encodeSchema(raw map[string]interface{}) (anthropic.ToolInputSchemaParam, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return anthropic.ToolInputSchemaParam{}, err
	}
	var schema anthropic.ToolInputSchemaParam
	if err := json.Unmarshal(data, &schema); err != nil {
		return anthropic.ToolInputSchemaParam{}, err
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema, nil
}
