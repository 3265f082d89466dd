package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/studybuddyai/buddy/pkg/eventstream"
	"github.com/studybuddyai/buddy/pkg/llm"
	"github.com/studybuddyai/buddy/pkg/storage"
)

// Admin actions accepted by POST /admin.
const (
	ActionVerify         = "verify"
	ActionGetSubmissions = "get-submissions"
)

const (
	errMsgInvalidPassword = "Invalid password"
	errMsgInvalidAction   = "Invalid action"
	errMsgAdminDisabled   = "admin access is not configured"

	adminPasswordHeader = "X-Admin-Password"
	defaultListLimit    = 50
	publishTimeout      = 5 * time.Second
)

// SubmissionRequest is the body of POST /submissions.
type SubmissionRequest struct {
	Name       string `json:"name"`
	SchoolName string `json:"school_name"`
	Email      string `json:"email"`
	Message    string `json:"message"`
}

// AdminRequest is the body of POST /admin.
type AdminRequest struct {
	Password string `json:"password"`
	Action   string `json:"action"`
}

// VerifyResponse answers the verify action.
type VerifyResponse struct {
	Success bool `json:"success"`
}

// SubmissionsResponse answers the get-submissions action.
type SubmissionsResponse struct {
	Submissions []*storage.Submission `json:"submissions"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleCreateSubmission handles POST /submissions.
func (s *Server) handleCreateSubmission(c *fiber.Ctx) error {
	var req SubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body",
		})
	}

	sub := storage.NewSubmission(req.Name, req.SchoolName, req.Email, req.Message)
	if err := sub.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	}

	if _, err := s.driver.PutSubmission(c.Context(), sub); err != nil {
		s.logger.Error("failed to store submission", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to store submission",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.config.Publisher.PublishSubmission(ctx, eventstream.NewSubmissionReceivedEvent(sub)); err != nil {
		s.logger.Warn("failed to publish submission event",
			"submission_id", sub.ID,
			"error", err,
		)
	}

	s.logger.Info("stored submission", "submission_id", sub.ID)
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// handleAdmin handles POST /admin.
func (s *Server) handleAdmin(c *fiber.Ctx) error {
	if s.config.AdminPassword == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: errMsgAdminDisabled})
	}

	var req AdminRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body",
		})
	}

	if !s.checkPassword(req.Password) {
		s.logger.Warn("rejected admin request", "ip", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: errMsgInvalidPassword})
	}

	switch req.Action {
	case ActionVerify:
		return c.JSON(VerifyResponse{Success: true})

	case ActionGetSubmissions:
		subs, err := s.driver.ListSubmissions(c.Context())
		if err != nil {
			s.logger.Error("failed to list submissions", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
				Error: "failed to list submissions",
			})
		}
		if subs == nil {
			subs = []*storage.Submission{}
		}
		return c.JSON(SubmissionsResponse{Submissions: subs})

	default:
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: errMsgInvalidAction})
	}
}

// requireAdmin guards read endpoints with the X-Admin-Password header.
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if s.config.AdminPassword == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: errMsgAdminDisabled})
	}
	if !s.checkPassword(c.Get(adminPasswordHeader)) {
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: errMsgInvalidPassword})
	}
	return c.Next()
}

// handleListTranscripts handles GET /transcripts?limit=N.
func (s *Server) handleListTranscripts(c *fiber.Ctx) error {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		// drivers treat a limit of 0 as "everything"
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
				Error: "limit must be a positive integer",
			})
		}
		limit = n
	}

	transcripts, err := s.driver.ListTranscripts(c.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list transcripts", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to list transcripts",
		})
	}
	if transcripts == nil {
		transcripts = []*storage.Transcript{}
	}

	return c.JSON(map[string]any{
		"count":       len(transcripts),
		"transcripts": transcripts,
	})
}

// handleGetTranscript handles GET /transcripts/:id.
func (s *Server) handleGetTranscript(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "id parameter is required",
		})
	}

	t, err := s.driver.GetTranscript(c.Context(), id)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "transcript not found"})
		}
		s.logger.Error("failed to get transcript", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to get transcript",
		})
	}

	return c.JSON(t)
}

func (s *Server) checkPassword(password string) bool {
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.config.AdminPassword)) == 1
}
