// Package engine drives one conversational exchange end to end:
// compose the memory context, call Claude, execute any memory tool
// calls, and feed the finished exchange back into the memory system.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/companionkit/memcore/core"
	"github.com/companionkit/memcore/memory"
	"github.com/companionkit/memcore/tools"
)

// Config holds the generation settings.
type Config struct {
	// Model is the Claude model to use.
	Model string

	// MaxTokens is the maximum response tokens per API call.
	MaxTokens int64

	// Persona heads the system prompt. The memory context is appended
	// below it.
	Persona string

	// ContextMemories is how many relevant long-term memories each
	// exchange pulls in.
	ContextMemories int

	// MaxToolTurns bounds the tool-execution loop within one exchange.
	MaxToolTurns int
}

// DefaultConfig returns the defaults used when config is nil.
var DefaultConfig = &Config{
	Model:           "claude-sonnet-4-20250514",
	MaxTokens:       1024,
	Persona:         DefaultPersona,
	ContextMemories: 5,
	MaxToolTurns:    8,
}

// Engine is the conversational runner over a memory system.
type Engine struct {
	client *anthropic.Client
	system *memory.System
	tools  *tools.Registry
	config *Config
}

// Option configures the engine.
type Option func(*Engine)

// WithTools lets the model call the memory tool set during a reply.
func WithTools(r *tools.Registry) Option {
	return func(e *Engine) {
		e.tools = r
	}
}

// NewEngine creates an engine over the given client and memory system.
// A nil config uses DefaultConfig.
func NewEngine(client *anthropic.Client, system *memory.System, config *Config, opts ...Option) *Engine {
	if config == nil {
		config = DefaultConfig
	}
	e := &Engine{
		client: client,
		system: system,
		config: config,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Input is one user message to respond to.
type Input struct {
	// UserID scopes memory reads and writes for this exchange.
	UserID string

	// Message is the user's message.
	Message string

	// StreamCallback receives text chunks as they arrive. done is true
	// exactly once, after the final chunk.
	StreamCallback func(chunk string, done bool)
}

// Output is the finished reply.
type Output struct {
	// Text is the companion's reply.
	Text string

	// Degraded is set when the long-term store was unavailable and the
	// reply was generated from short-term context only.
	Degraded bool

	// ToolsUsed records the memory tools invoked, in call order.
	ToolsUsed []string

	// InputTokens and OutputTokens track API token consumption across
	// the whole exchange, tool turns included.
	InputTokens  int
	OutputTokens int
}

// Respond generates one reply. The exchange is recorded in the memory
// system afterwards; a recording failure is logged, never surfaced,
// since the user already has their reply by then.
func (e *Engine) Respond(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, fmt.Errorf("empty message")
	}

	bundle := e.system.ContextForResponse(ctx, input.UserID, input.Message, true, true, e.config.ContextMemories)
	systemPrompt := BuildSystemPrompt(e.config.Persona, bundle)

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(input.Message)),
	}
	var apiTools []anthropic.ToolUnionParam
	if e.tools != nil {
		apiTools = e.tools.Definitions()
	}

	out := &Output{Degraded: bundle.Degraded}
	for turn := 0; ; turn++ {
		if turn >= e.config.MaxToolTurns {
			return nil, fmt.Errorf("exceeded maximum tool turns (%d)", e.config.MaxToolTurns)
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(e.config.Model),
			MaxTokens: e.config.MaxTokens,
			Messages:  messages,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
		}
		if len(apiTools) > 0 {
			params.Tools = apiTools
		}

		var resp *anthropic.Message
		var err error
		if input.StreamCallback != nil {
			resp, err = e.createMessageStreaming(ctx, params, input.StreamCallback)
		} else {
			resp, err = e.client.Messages.New(ctx, params)
		}
		if err != nil {
			return nil, fmt.Errorf("claude API error: %w", err)
		}
		out.InputTokens += int(resp.Usage.InputTokens)
		out.OutputTokens += int(resp.Usage.OutputTokens)

		var toolResults []anthropic.ContentBlockParamUnion
		var text string
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				text += block.Text

			case "tool_use":
				out.ToolsUsed = append(out.ToolsUsed, block.Name)
				result, execErr := e.tools.Execute(ctx, input.UserID, block.Name, block.Input)
				if execErr != nil {
					log.Printf("[ENGINE] tool %s for %s failed: %v", block.Name, input.UserID, execErr)
					toolResults = append(toolResults, anthropic.NewToolResultBlock(block.ID, execErr.Error(), true))
					continue
				}
				toolResults = append(toolResults, anthropic.NewToolResultBlock(block.ID, result, false))
			}
		}

		if len(toolResults) == 0 {
			out.Text = text
			if input.StreamCallback != nil {
				input.StreamCallback("", true)
			}
			e.recordExchange(ctx, input.UserID, input.Message, text)
			return out, nil
		}

		// Continue the loop with the tool results.
		messages = append(messages, resp.ToParam())
		messages = append(messages, anthropic.NewUserMessage(toolResults...))
	}
}

// recordExchange feeds the finished turn back into memory.
func (e *Engine) recordExchange(ctx context.Context, userID, userMessage, reply string) {
	if reply == "" {
		return
	}
	turn := core.NewConversationTurn(userID, userMessage, reply, nil, nil)
	if err := e.system.ProcessTurn(ctx, userID, turn); err != nil {
		log.Printf("[ENGINE] recording exchange for %s: %v", userID, err)
	}
}

// createMessageStreaming issues the request as a stream, forwarding
// text deltas to the callback and accumulating the full message.
func (e *Engine) createMessageStreaming(ctx context.Context, params anthropic.MessageNewParams, callback func(string, bool)) (*anthropic.Message, error) {
	stream := e.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			log.Printf("[ENGINE] stream accumulate: %v", err)
		}

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				callback(delta.Text, false)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return &message, nil
}

// BuildSystemPrompt assembles the system prompt for one exchange:
// the persona, then the memory context block. Exported for callers
// that bring their own model client.
func BuildSystemPrompt(persona string, bundle *memory.ContextBundle) string {
	if persona == "" {
		persona = DefaultPersona
	}
	context := bundle.PromptText()
	if context == "" {
		return persona
	}
	return persona + "\n\n" + context
}

// DefaultPersona is the default system prompt head.
const DefaultPersona = `You are a warm, attentive companion in an ongoing relationship with the user.

GUIDELINES:
- Be conversational and genuine; this is a continuing relationship, not a one-off chat
- Use what you remember about the user naturally, without reciting it back as a list
- When the user shares something lasting about themselves, remember it
- When the user asks you to forget something, forget it and say so plainly
- Never invent memories; if you are not sure, ask`
