// Package header provides header handling for the chat gateway.
//
// The gateway sits between the chat client and the upstream model provider:
//
//	Client <--> Gateway <--> Upstream chat-completions API
//
// Each leg authenticates independently. The client's credentials never reach
// the upstream, and the upstream key never reaches the client.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AllowedRequestHeaders is the CORS allow-list advertised to browsers.
const AllowedRequestHeaders = "authorization, x-client-info, apikey, content-type"

// Handler manages headers between gateway connections.
type Handler struct {
	upstreamKey string
}

// NewHandler creates a new header Handler that authenticates upstream
// requests with upstreamKey.
func NewHandler(upstreamKey string) *Handler {
	return &Handler{upstreamKey: upstreamKey}
}

// forwardRequest is the set of client request headers copied onto the
// upstream request. Everything else, credentials included, is dropped.
var forwardRequest = map[string]struct{}{
	"Accept-Language": {},
	"User-Agent":      {},
	"X-Client-Info":   {},
	"X-Request-Id":    {},
}

// skipResponse is the set of upstream response headers (client <-- gateway <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection":        {},
	"Transfer-Encoding": {},

	// Go's http.Transport may have decompressed the body already; Fiber's
	// compress middleware sets the client-facing encoding and length.
	"Content-Encoding": {},
	"Content-Length":   {},

	// Upstream session state and CORS policy belong to the upstream origin.
	"Set-Cookie":                       {},
	"Access-Control-Allow-Origin":      {},
	"Access-Control-Allow-Headers":     {},
	"Access-Control-Allow-Methods":     {},
	"Access-Control-Allow-Credentials": {},
	"Access-Control-Expose-Headers":    {},
}

// SetUpstreamRequestHeaders prepares the outgoing request: the allow-listed
// client headers are copied, then content negotiation and the upstream
// bearer credential are set.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, ok := forwardRequest[k]; ok {
			req.Header.Set(k, string(value))
		}
	})

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if h.upstreamKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.upstreamKey)
	}
}

// SetClientResponseHeaders copies response headers from the upstream
// http.Response to the Fiber context, filtering headers that the gateway
// should not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[http.CanonicalHeaderKey(k)]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// BearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when there is none.
func BearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
