package gateway

import (
	"net/http"

	"github.com/studybuddyai/buddy/pkg/eventstream"
)

// Config is the gateway server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the OpenAI-compatible chat completions endpoint
	// (e.g., "https://ai.gateway.lovable.dev/v1/chat/completions")
	UpstreamURL string

	// UpstreamAPIKey authenticates the gateway against the upstream. When
	// empty every chat request fails with a configuration error.
	UpstreamAPIKey string

	// Model is the upstream model name sent with every request.
	Model string

	// APIKey, when set, must be presented by clients as a bearer token.
	APIKey string

	// CORSOrigins is the comma-separated list of allowed browser origins.
	// Defaults to "*".
	CORSOrigins string

	// Prompt supplies the system prompt. Defaults to the built-in prompt.
	Prompt PromptSource

	// Publisher receives chat events. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// HTTPClient overrides the client used for upstream requests.
	HTTPClient *http.Client
}

// PromptSource supplies the current system prompt. *prompt.Store
// implements it.
type PromptSource interface {
	Get() string
}
