package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/estoque/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
	"github.com/saturnino-fabrica-de-software/estoque/internal/flow"
)

// AuthFlow is implemented by flow.Service.
type AuthFlow interface {
	Login(ctx context.Context, req flow.LoginRequest) (string, error)
	Register(ctx context.Context, token string, req flow.RegisterRequest) error
}

type AuthHandler struct {
	flow   AuthFlow
	logger *slog.Logger
}

func NewAuthHandler(flow AuthFlow, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		flow:   flow,
		logger: logger,
	}
}

type LoginResponse struct {
	Token string `json:"token"`
}

// Login POST /v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req flow.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}
	if req.Role == "" {
		req.Role = domain.RoleUser
	}

	token, err := h.flow.Login(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(LoginResponse{Token: token})
}

// Register POST /v1/auth/register - administrators only, bearer token required
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	token, err := middleware.GetBackendToken(c)
	if err != nil {
		return err
	}

	var req flow.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	if err := h.flow.Register(c.UserContext(), token, req); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusCreated)
}
