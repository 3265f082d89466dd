// Package gateway provides the chat gateway: it prepends the system prompt to
// a client's conversation, relays it to an OpenAI-compatible upstream and
// streams the Server-Sent Events answer back verbatim, persisting each
// completed exchange asynchronously.
package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/studybuddyai/buddy/gateway/header"
	"github.com/studybuddyai/buddy/gateway/worker"
	"github.com/studybuddyai/buddy/pkg/chatstream"
	"github.com/studybuddyai/buddy/pkg/eventstream"
	"github.com/studybuddyai/buddy/pkg/llm"
	"github.com/studybuddyai/buddy/pkg/logger"
	"github.com/studybuddyai/buddy/pkg/prompt"
	"github.com/studybuddyai/buddy/pkg/storage"
	"github.com/studybuddyai/buddy/pkg/utils"
)

const (
	chatPath = "/chat"

	// maxUpstreamErrorBody bounds how much of an upstream error is logged.
	maxUpstreamErrorBody = 4 * 1024
)

// Error messages returned to clients.
const (
	errMsgUnauthorized      = "unauthorized"
	errMsgMissingUpstream   = "upstream API key is not configured"
	errMsgRateLimited       = "Rate limit exceeded. Please try again later."
	errMsgPaymentRequired   = "Service temporarily unavailable."
	errMsgUpstream          = "AI service error"
	errMsgUpstreamFailed    = "upstream request failed"
	errMsgInternal          = "internal error"
	errMsgInvalidBodyPrefix = "invalid request: "
)

// Gateway relays client conversations to the upstream model provider.
type Gateway struct {
	config        Config
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Gateway.
// The driver is injected to handle async persistence of completed exchanges.
func New(config Config, driver storage.Driver, l *slog.Logger) (*Gateway, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if config.Model == "" {
		return nil, errors.New("upstream model is required")
	}
	if config.CORSOrigins == "" {
		config.CORSOrigins = "*"
	}
	if config.Prompt == nil {
		store, err := prompt.NewStore("", l)
		if err != nil {
			return nil, err
		}
		config.Prompt = store
	}
	if l == nil {
		l = logger.Nop()
	}
	l = l.With("component", "gateway")

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.CORSOrigins,
		AllowHeaders: header.AllowedRequestHeaders,
		AllowMethods: "GET,POST,OPTIONS",
	}))
	app.Use(compress.New())

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: config.Publisher,
		Logger:    l,
	})
	if err != nil {
		return nil, err
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// LLM responses can be slow
			Timeout: 5 * time.Minute,
		}
	}

	g := &Gateway{
		config:        config,
		workerPool:    wp,
		logger:        l,
		httpClient:    httpClient,
		server:        app,
		headerHandler: header.NewHandler(config.UpstreamAPIKey),
	}

	app.Post(chatPath, g.handleChat)
	app.Get("/healthz", adaptor.HTTPHandlerFunc(g.handleHealth))

	return g, nil
}

// Run starts the gateway server on the configured listening address.
func (g *Gateway) Run() error {
	g.logger.Info("starting gateway server",
		"listen", g.config.ListenAddr,
		"upstream", g.config.UpstreamURL,
		"model", g.config.Model,
	)

	return g.server.Listen(g.config.ListenAddr)
}

// RunWithListener starts the gateway server using the provided listener.
func (g *Gateway) RunWithListener(listener net.Listener) error {
	g.logger.Info("starting gateway server",
		"listen", listener.Addr().String(),
		"upstream", g.config.UpstreamURL,
		"model", g.config.Model,
	)

	return g.server.Listener(listener)
}

// Close stops accepting requests, waits for in-flight streams and then
// drains the worker pool.
func (g *Gateway) Close() error {
	err := g.server.Shutdown()
	g.workerPool.Close()
	return err
}

// handleHealth is a plain net/http handler mounted through the fiber adaptor
// so it can be reused behind any mux.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":            "ok",
		"model":             g.config.Model,
		"upstream_key_set":  g.config.UpstreamAPIKey != "",
		"client_auth_on":    g.config.APIKey != "",
		"system_prompt_len": len(g.config.Prompt.Get()),
	})
}

// handleChat validates the client conversation, forwards it upstream and
// streams the answer back.
func (g *Gateway) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	if !g.authorized(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: errMsgUnauthorized})
	}

	chatReq, err := llm.ParseChatRequest(c.Body())
	if err != nil {
		g.logger.Debug("rejected chat request", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: errMsgInvalidBodyPrefix + err.Error()})
	}

	if g.config.UpstreamAPIKey == "" {
		g.logger.Error("upstream API key is not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: errMsgMissingUpstream})
	}

	upstreamReq := llm.NewUpstreamRequest(g.config.Model, g.config.Prompt.Get(), chatReq.Messages)
	body, err := json.Marshal(upstreamReq)
	if err != nil {
		g.logger.Error("failed to marshal upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: errMsgInternal})
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the relay runs in a
	// separate goroutine and needs the upstream connection to remain open.
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, g.config.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		g.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: errMsgInternal})
	}

	g.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	g.logger.Debug("forwarding conversation to upstream",
		"url", g.config.UpstreamURL,
		"message_count", len(chatReq.Messages),
	)

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		g.logger.Error("upstream request failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: errMsgUpstreamFailed})
	}

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		return g.upstreamError(c, httpResp)
	}

	g.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// Use io.Pipe + SetBodyStream so that every pw.Write blocks until
	// fasthttp's chunked body writer has consumed and flushed it, giving
	// per-chunk streaming with backpressure.
	pr, pw := io.Pipe()
	go g.relay(httpResp, pw, chatReq.Messages, startTime)

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// upstreamError maps a non-2xx upstream response onto the client contract:
// 429 and 402 are passed through with a friendly message, everything else
// becomes a 500.
func (g *Gateway) upstreamError(c *fiber.Ctx, httpResp *http.Response) error {
	defer httpResp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxUpstreamErrorBody))

	switch httpResp.StatusCode {
	case http.StatusTooManyRequests:
		g.logger.Warn("upstream rate limited")
		return c.Status(fiber.StatusTooManyRequests).JSON(llm.ErrorResponse{Error: errMsgRateLimited})
	case http.StatusPaymentRequired:
		g.logger.Warn("upstream requires payment")
		return c.Status(fiber.StatusPaymentRequired).JSON(llm.ErrorResponse{Error: errMsgPaymentRequired})
	default:
		g.logger.Error("upstream returned error",
			"status", httpResp.StatusCode,
			"body", utils.Truncate(string(respBody), 512),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: errMsgUpstream})
	}
}

// relay copies the upstream body to the client verbatim while a Decoder
// reconstructs the answer from the same bytes. Once the stream ends the
// exchange is handed to the worker pool.
func (g *Gateway) relay(httpResp *http.Response, pw *io.PipeWriter, history []llm.Message, startTime time.Time) {
	// Close the upstream response body once streaming is complete.
	defer httpResp.Body.Close()
	defer pw.Close()

	decoder := chatstream.NewDecoder(chatstream.WithDecoderLogger(g.logger))
	tee := io.TeeReader(httpResp.Body, decoderSink{decoder})

	if _, err := io.Copy(pw, tee); err != nil {
		g.logger.Warn("chat stream interrupted",
			"error", err,
			"answer_bytes", len(decoder.Accumulated()),
		)
	}

	answer := decoder.Accumulated()
	if answer == "" {
		g.logger.Debug("chat stream produced no answer, nothing to store")
		return
	}

	g.logger.Debug("chat stream complete",
		"answer_preview", utils.Truncate(answer, 120),
		"done", decoder.Done(),
		"duration", time.Since(startTime),
	)

	g.workerPool.Enqueue(worker.Job{
		Transcript: storage.NewTranscript(g.config.Model, history, answer),
		Meta: eventstream.RequestMeta{
			Path:        chatPath,
			StartedAt:   startTime.UTC(),
			CompletedAt: time.Now().UTC(),
			HTTPStatus:  httpResp.StatusCode,
			Done:        decoder.Done(),
		},
	})
}

// authorized checks the client bearer token when an API key is configured.
func (g *Gateway) authorized(c *fiber.Ctx) bool {
	if g.config.APIKey == "" {
		return true
	}
	token := header.BearerToken(c)
	return subtle.ConstantTimeCompare([]byte(token), []byte(g.config.APIKey)) == 1
}

// decoderSink feeds every byte written to it into a Decoder.
type decoderSink struct {
	decoder *chatstream.Decoder
}

func (s decoderSink) Write(p []byte) (int, error) {
	s.decoder.Feed(p)
	return len(p), nil
}
