// Package chatstream implements the streaming chat client: it posts a
// conversation to a chat-completion endpoint, decodes the Server-Sent Events
// response incrementally and exposes the assistant's answer as a sequence of
// growing snapshots.
//
//	history ──▶ Client.SendConversation ──▶ Stream.Next ──▶ "Hel", "Hello", ...
//	                                            │
//	                                            ▼
//	                                   Transcript.Merge (UI state)
package chatstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/studybuddyai/buddy/pkg/llm"
	"github.com/studybuddyai/buddy/pkg/logger"
	"github.com/studybuddyai/buddy/pkg/utils"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 4 * 1024

// Config configures a Client.
type Config struct {
	// Endpoint is the chat gateway URL (e.g. "http://localhost:8080/chat").
	Endpoint string

	// APIKey is sent as a bearer credential when non-empty.
	APIKey string

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client

	// Logger receives request and decode diagnostics. Defaults to a no-op
	// logger.
	Logger *slog.Logger

	// StallLimit is passed to every Decoder, see WithStallLimit.
	StallLimit int
}

// Client sends conversations to a chat-completion endpoint. A Client holds no
// per-request state and may be shared; serializing sends is up to the caller.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	stallLimit int
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("chat endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid chat endpoint: %w", err)
	}

	c := &Client{
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		stallLimit: cfg.StallLimit,
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			// LLM responses can be slow
			Timeout: 5 * time.Minute,
		}
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}

	return c, nil
}

// SendConversation posts history to the endpoint and returns the stream of
// snapshots of the assistant's answer. history must be non-empty and end with
// a user message.
//
// A *TransportError is returned when the request fails, the status is not 2xx
// or the response has no body. Canceling ctx aborts the request and, later,
// the stream.
func (c *Client) SendConversation(ctx context.Context, history []llm.Message) (*Stream, error) {
	if err := llm.ValidateHistory(history); err != nil {
		return nil, err
	}

	body, err := json.Marshal(llm.ChatRequest{Messages: history})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("sending conversation",
		"endpoint", c.endpoint,
		"message_count", len(history),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, canceled(ctxErr)
		}
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		terr := &TransportError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
		c.logger.Warn("chat endpoint rejected conversation",
			"status", resp.StatusCode,
			"message", terr.Message,
		)
		return nil, terr
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Message:    "response has no body",
		}
	}

	decoder := NewDecoder(
		WithDecoderLogger(c.logger),
		WithStallLimit(c.stallLimit),
	)

	return newStream(ctx, resp.Body, decoder, c.logger), nil
}

// readErrorMessage extracts a readable message from a failed response:
// the "error" field of a JSON body, or the raw text.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp llm.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}

	return utils.Truncate(strings.TrimSpace(string(data)), 256)
}
