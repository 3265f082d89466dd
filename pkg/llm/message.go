// Package llm holds the provider-neutral chat types shared by the streaming
// client, the gateway and the storage layer.
package llm

import (
	"errors"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrEmptyHistory is returned when a conversation has no messages.
	ErrEmptyHistory = errors.New("conversation history is empty")

	// ErrHistoryNotUser is returned when a conversation does not end with a
	// user message.
	ErrHistoryNotUser = errors.New("conversation history must end with a user message")
)

// Message is a single turn in a chat transcript.
type Message struct {
	Role    string `json:"role"`    // "user", "assistant" (or "system" upstream)
	Content string `json:"content"` // plain text content
}

// NewUserMessage creates a user message with the given text.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage creates an assistant message with the given text.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ValidateHistory checks the only precondition a conversation must satisfy
// before being sent: it is non-empty and its last message is from the user.
func ValidateHistory(history []Message) error {
	if len(history) == 0 {
		return ErrEmptyHistory
	}

	last := history[len(history)-1]
	if last.Role != RoleUser {
		return fmt.Errorf("%w (last role %q)", ErrHistoryNotUser, last.Role)
	}

	return nil
}

// CloneMessages returns a shallow copy of msgs that callers may mutate freely.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
