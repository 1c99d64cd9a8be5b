package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

// AttemptLister is implemented by the attempt repositories.
type AttemptLister interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.VerificationAttempt, error)
}

type AttemptsHandler struct {
	attempts AttemptLister
	logger   *slog.Logger
}

func NewAttemptsHandler(attempts AttemptLister, logger *slog.Logger) *AttemptsHandler {
	return &AttemptsHandler{
		attempts: attempts,
		logger:   logger,
	}
}

type AttemptsResponse struct {
	SessionID uuid.UUID                    `json:"session_id"`
	Attempts  []domain.VerificationAttempt `json:"attempts"`
}

// List GET /v1/capture/sessions/:id/attempts
// The log outlives the session, so closed sessions still answer.
func (h *AttemptsHandler) List(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	attempts, err := h.attempts.ListBySession(c.UserContext(), id)
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}
	if attempts == nil {
		attempts = []domain.VerificationAttempt{}
	}

	return c.JSON(AttemptsResponse{SessionID: id, Attempts: attempts})
}
