package handler

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/audit"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

// SettingsStore is implemented by the settings repositories.
type SettingsStore interface {
	Get(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, s domain.Settings) (domain.Settings, error)
}

type SettingsHandler struct {
	store  SettingsStore
	audit  audit.Logger
	logger *slog.Logger
}

func NewSettingsHandler(store SettingsStore, auditLogger audit.Logger, logger *slog.Logger) *SettingsHandler {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &SettingsHandler{
		store:  store,
		audit:  auditLogger,
		logger: logger,
	}
}

type UpdateSettingsRequest struct {
	FacialRecognition *bool `json:"facial_recognition"`
}

// Get GET /v1/settings
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	s, err := h.store.Get(c.UserContext())
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}
	return c.JSON(s)
}

// Update PUT /v1/settings
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	var req UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}
	if req.FacialRecognition == nil {
		return domain.ErrValidationFailed
	}

	saved, err := h.store.Save(c.UserContext(), domain.Settings{FacialRecognition: *req.FacialRecognition})
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}

	event := audit.Event{
		ID:        uuid.New(),
		Timestamp: time.Now(),
		EventType: audit.EventSettingsChanged,
		Success:   true,
		Metadata:  map[string]string{"facial_recognition": strconv.FormatBool(saved.FacialRecognition)},
		IPAddress: c.IP(),
	}
	if err := h.audit.Log(c.UserContext(), event); err != nil {
		h.logger.Warn("failed to audit settings change", "error", err)
	}

	h.logger.Info("settings updated", "facial_recognition", saved.FacialRecognition)
	return c.JSON(saved)
}
