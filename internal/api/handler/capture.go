package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/capture"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
	"github.com/saturnino-fabrica-de-software/estoque/internal/flow"
)

const maxFrameSize = 4 * 1024 * 1024 // 4MB

// CaptureSessions is implemented by capture.Registry.
type CaptureSessions interface {
	Create(ctx context.Context, purpose domain.CapturePurpose, identity string) (*capture.Controller, error)
	Get(id uuid.UUID) (*capture.Controller, error)
	PushFrame(id uuid.UUID, data []byte) error
	Close(ctx context.Context, id uuid.UUID) error
}

// FaceVerifier is implemented by flow.Service.
type FaceVerifier interface {
	Verify(ctx context.Context, sessionID uuid.UUID, identity string) (flow.VerifyResult, error)
}

// CaptureHandler drives capture sessions over HTTP. Live overlay and
// notifications go through the WebSocket.
type CaptureHandler struct {
	sessions CaptureSessions
	verifier FaceVerifier
	logger   *slog.Logger
}

func NewCaptureHandler(sessions CaptureSessions, verifier FaceVerifier, logger *slog.Logger) *CaptureHandler {
	return &CaptureHandler{
		sessions: sessions,
		verifier: verifier,
		logger:   logger,
	}
}

type CreateSessionRequest struct {
	Purpose  domain.CapturePurpose `json:"purpose"`
	Identity string                `json:"identity,omitempty"`
}

type VerifyRequest struct {
	Identity string `json:"identity,omitempty"`
}

// Create POST /v1/capture/sessions - open a session and start streaming
func (h *CaptureHandler) Create(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return domain.ErrBadRequest.WithError(err)
		}
	}

	switch req.Purpose {
	case "":
		req.Purpose = domain.PurposeLogin
	case domain.PurposeLogin, domain.PurposeRegister:
	default:
		return domain.ErrValidationFailed.WithError(errors.New("purpose must be login or register"))
	}

	ctrl, err := h.sessions.Create(c.UserContext(), req.Purpose, strings.TrimSpace(req.Identity))
	if err != nil {
		if ctrl != nil {
			_ = h.sessions.Close(c.UserContext(), ctrl.ID())
		}
		return err
	}

	h.logger.Info("capture session created",
		"session_id", ctrl.ID(),
		"purpose", req.Purpose,
	)

	return c.Status(fiber.StatusCreated).JSON(ctrl.Snapshot())
}

// Get GET /v1/capture/sessions/:id
func (h *CaptureHandler) Get(c *fiber.Ctx) error {
	ctrl, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(ctrl.Snapshot())
}

// PushFrame POST /v1/capture/sessions/:id/frames - raw JPEG or PNG body
func (h *CaptureHandler) PushFrame(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	body := c.Body()
	if len(body) == 0 {
		return domain.ErrBadRequest.WithError(errors.New("empty frame"))
	}
	if len(body) > maxFrameSize {
		return domain.ErrInvalidImage.WithError(errors.New("frame too large"))
	}

	if err := h.sessions.PushFrame(id, body); err != nil {
		if errors.Is(err, capture.ErrSourceClosed) {
			return domain.ErrInvalidTransition.WithError(err)
		}
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Capture POST /v1/capture/sessions/:id/capture - take the still
func (h *CaptureHandler) Capture(c *fiber.Ctx) error {
	ctrl, err := h.session(c)
	if err != nil {
		return err
	}

	snap, err := ctrl.Capture(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(snap)
}

// Retake POST /v1/capture/sessions/:id/retake - drop the still and stream again
func (h *CaptureHandler) Retake(c *fiber.Ctx) error {
	ctrl, err := h.session(c)
	if err != nil {
		return err
	}

	if err := ctrl.Retake(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(ctrl.Snapshot())
}

// Restart POST /v1/capture/sessions/:id/restart - cancel and start over,
// e.g. after the models failed to load
func (h *CaptureHandler) Restart(c *fiber.Ctx) error {
	ctrl, err := h.session(c)
	if err != nil {
		return err
	}

	ctrl.Cancel(c.UserContext())
	if err := ctrl.Start(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(ctrl.Snapshot())
}

// Still GET /v1/capture/sessions/:id/still - the captured JPEG
func (h *CaptureHandler) Still(c *fiber.Ctx) error {
	ctrl, err := h.session(c)
	if err != nil {
		return err
	}

	still := ctrl.Still()
	if len(still) == 0 {
		return domain.ErrNoStillImage
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(still)
}

// Verify POST /v1/capture/sessions/:id/verify
func (h *CaptureHandler) Verify(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req VerifyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return domain.ErrBadRequest.WithError(err)
		}
	}

	result, err := h.verifier.Verify(c.UserContext(), id, req.Identity)
	if err != nil {
		// a verdict was reached; the client needs the session state too
		if result.Result.Outcome != "" {
			return c.Status(statusOf(err)).JSON(fiber.Map{
				"error":   errorBody(err),
				"result":  result.Result,
				"session": result.Session,
			})
		}
		return err
	}
	return c.JSON(result)
}

// Delete DELETE /v1/capture/sessions/:id - cancel and forget the session
func (h *CaptureHandler) Delete(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	if err := h.sessions.Close(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CaptureHandler) session(c *fiber.Ctx) (*capture.Controller, error) {
	id, err := sessionID(c)
	if err != nil {
		return nil, err
	}
	return h.sessions.Get(id)
}

func sessionID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.ErrBadRequest.WithError(errors.New("invalid session id"))
	}
	return id, nil
}

func statusOf(err error) int {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return fiber.StatusInternalServerError
}

func errorBody(err error) fiber.Map {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return fiber.Map{"code": appErr.Code, "message": appErr.Message}
	}
	return fiber.Map{"code": domain.ErrInternal.Code, "message": domain.ErrInternal.Message}
}
