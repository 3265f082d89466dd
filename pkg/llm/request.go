package llm

import (
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ChatRequest is the body a client posts to the chat gateway.
type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// ErrorResponse is the JSON error body returned by the gateway and the API
// server.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ParseChatRequest decodes and validates a gateway request body.
func ParseChatRequest(body []byte) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decoding chat request: %w", err)
	}

	if err := ValidateHistory(req.Messages); err != nil {
		return nil, err
	}

	return &req, nil
}

// NewUpstreamRequest builds the OpenAI-compatible streaming completion request
// forwarded to the upstream gateway. A non-empty system prompt is prepended as
// the first message.
func NewUpstreamRequest(model, systemPrompt string, history []Message) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stream:   true,
	}
}
