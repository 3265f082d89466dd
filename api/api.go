package api

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/studybuddyai/buddy/pkg/eventstream/nop"
	"github.com/studybuddyai/buddy/pkg/logger"
	"github.com/studybuddyai/buddy/pkg/storage"
)

// Server is the API server for submissions and the admin contract.
type Server struct {
	config Config
	driver storage.Driver
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The driver is injected to allow sharing with the gateway when both run in
// one process.
func NewServer(config Config, driver storage.Driver, l *slog.Logger) *Server {
	if l == nil {
		l = logger.Nop()
	}
	if config.Publisher == nil {
		config.Publisher = nop.NewPublisher()
	}
	if config.CORSOrigins == "" {
		config.CORSOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.CORSOrigins,
		AllowHeaders: "authorization, x-client-info, apikey, content-type, x-admin-password",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	s := &Server{
		config: config,
		driver: driver,
		logger: l.With("component", "api"),
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/submissions", s.handleCreateSubmission)
	app.Post("/admin", s.handleAdmin)

	transcripts := app.Group("/transcripts", s.requireAdmin)
	transcripts.Get("/", s.handleListTranscripts)
	transcripts.Get("/:id", s.handleGetTranscript)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"admin_enabled", s.config.AdminPassword != "",
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// HTTPHandler exposes the server as a net/http handler so it can be mounted
// behind another mux or an httptest.Server.
func HTTPHandler(s *Server) http.HandlerFunc {
	return adaptor.FiberApp(s.app)
}
