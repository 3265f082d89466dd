// Package admin is a client for the admin contract served by the buddy API:
// a single POST endpoint taking a password and an action.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/studybuddyai/buddy/pkg/storage"
	"github.com/studybuddyai/buddy/pkg/utils"
)

const (
	actionVerify         = "verify"
	actionGetSubmissions = "get-submissions"

	maxErrorBody = 4 * 1024
)

// Error is returned when the admin endpoint answers with a non-2xx status.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("admin request failed: status %d: %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether the server rejected the password.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Client calls the admin endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for the admin endpoint URL,
// e.g. "http://localhost:8081/admin".
func NewClient(endpoint string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("admin endpoint is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}, nil
}

// Verify checks the password. It returns nil when the password is accepted.
func (c *Client) Verify(ctx context.Context, password string) error {
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, password, actionVerify, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &Error{StatusCode: http.StatusOK, Message: "verification was not confirmed"}
	}
	return nil
}

// Submissions returns every stored submission, newest first.
func (c *Client) Submissions(ctx context.Context, password string) ([]*storage.Submission, error) {
	var resp struct {
		Submissions []*storage.Submission `json:"submissions"`
	}
	if err := c.do(ctx, password, actionGetSubmissions, &resp); err != nil {
		return nil, err
	}
	return resp.Submissions, nil
}

func (c *Client) do(ctx context.Context, password, action string, out any) error {
	body, err := json.Marshal(map[string]string{
		"password": password,
		"action":   action,
	})
	if err != nil {
		return fmt.Errorf("marshaling admin request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating admin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending admin request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &Error{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding admin response: %w", err)
	}
	return nil
}

// errorMessage extracts the {"error": "..."} field, falling back to the raw
// body.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return utils.Truncate(strings.TrimSpace(string(raw)), 256)
}
