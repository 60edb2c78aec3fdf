package core

import (
	"time"

	"github.com/google/uuid"
)

// ConversationTurn is one user/bot exchange. Turns are immutable once
// appended to the short-term buffer.
type ConversationTurn struct {
	// ID uniquely identifies the turn.
	ID string

	// UserID namespaces the turn to a single user.
	UserID string

	// UserMessage is the raw text the user sent.
	UserMessage string

	// BotResponse is the text the bot replied with.
	BotResponse string

	// EmotionalContext carries opaque mood/sentiment signals from the
	// affection system. The memory core stores it but never interprets it.
	EmotionalContext map[string]string

	// Topics lists the topics detected for this exchange, in order.
	Topics []string

	// Timestamp records when the exchange happened.
	Timestamp time.Time
}

// NewConversationTurn builds a turn with a fresh ID and timestamp.
// Validation of message content happens at the buffer boundary.
func NewConversationTurn(userID, userMessage, botResponse string, emotionalContext map[string]string, topics []string) ConversationTurn {
	return ConversationTurn{
		ID:               uuid.New().String(),
		UserID:           userID,
		UserMessage:      userMessage,
		BotResponse:      botResponse,
		EmotionalContext: emotionalContext,
		Topics:           topics,
		Timestamp:        time.Now(),
	}
}
