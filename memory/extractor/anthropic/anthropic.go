// Package anthropic implements the memory.Extractor contract with a
// Claude model: recent turns go in, distilled candidate memories with
// inferred type and importance come out.
package anthropic

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/companionkit/memcore/core"
	"github.com/companionkit/memcore/memory"
)

// Config configures the extractor.
type Config struct {
	// Model is the Claude model to use.
	Model string

	// MaxTokens caps the extraction response.
	MaxTokens int64

	// MaxTurns limits how many of the most recent turns are sent.
	MaxTurns int
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	Model:     "claude-sonnet-4-20250514",
	MaxTokens: 1024,
	MaxTurns:  5,
}

// Extractor asks Claude for memorable statements in a conversation.
type Extractor struct {
	client *anthropic.Client
	config *Config
}

// New creates an extractor using the given Anthropic client.
func New(client *anthropic.Client, config *Config) *Extractor {
	if config == nil {
		config = DefaultConfig
	}
	return &Extractor{client: client, config: config}
}

const systemPrompt = `You distill long-term memories from a conversation between a user and their companion.

Extract only information worth remembering indefinitely:
1. Personal facts about the user (name, age, occupation, where they live)
2. Preferences and tastes
3. Significant events the user mentioned
4. The user's emotional state

Respond with JSON only, no prose:
{"memories": [{"content": "...", "type": "fact|preference|event|emotion", "importance": 0.8}]}

Return {"memories": []} when nothing is worth keeping.`

// Extract sends the recent turns to Claude and parses the returned
// candidate list. Every failure is an ExtractionServiceError; the
// caller skips the cycle and retries later.
func (e *Extractor) Extract(ctx context.Context, turns []core.ConversationTurn) ([]memory.Candidate, error) {
	if len(turns) == 0 {
		return nil, nil
	}
	if len(turns) > e.config.MaxTurns {
		turns = turns[len(turns)-e.config.MaxTurns:]
	}

	var sb strings.Builder
	for _, turn := range turns {
		sb.WriteString("User: " + turn.UserMessage + "\n")
		sb.WriteString("Companion: " + turn.BotResponse + "\n")
	}

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.config.Model),
		MaxTokens: e.config.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String())),
		},
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	})
	if err != nil {
		return nil, &memory.ExtractionServiceError{Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return parseCandidates(text)
}

// parseCandidates decodes the model's JSON, tolerating code fences and
// skipping entries that fail type validation.
func parseCandidates(text string) ([]memory.Candidate, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var payload struct {
		Memories []struct {
			Content    string  `json:"content"`
			Type       string  `json:"type"`
			Importance float64 `json:"importance"`
		} `json:"memories"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &payload); err != nil {
		return nil, &memory.ExtractionServiceError{Err: err}
	}

	var candidates []memory.Candidate
	for _, m := range payload.Memories {
		memType, err := memory.ParseMemoryType(m.Type)
		if err != nil {
			log.Printf("[EXTRACT] skipping candidate with invalid type %q", m.Type)
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		candidates = append(candidates, memory.Candidate{
			Content:    m.Content,
			Type:       memType,
			Importance: memory.ClampImportance(m.Importance),
		})
	}
	return candidates, nil
}
