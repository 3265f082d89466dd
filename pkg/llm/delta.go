package llm

import (
	"encoding/json"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// ParseDelta extracts the incremental text of an OpenAI-style streaming chunk,
// i.e. choices[0].delta.content.
//
// An error is returned only when data is not a complete JSON document. A
// valid document with no choices, no content, or fields of an unexpected type
// yields whatever content could still be decoded and a nil error.
func ParseDelta(data []byte) (string, error) {
	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(data, &chunk); err != nil {
		// encoding/json keeps decoding past a type mismatch, so the fields
		// that did match are populated.
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return "", err
		}
	}

	if len(chunk.Choices) == 0 {
		return "", nil
	}

	return chunk.Choices[0].Delta.Content, nil
}
