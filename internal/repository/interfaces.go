package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

// SettingsRepositoryInterface defines operations for console settings
type SettingsRepositoryInterface interface {
	Get(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, s domain.Settings) (domain.Settings, error)
}

// AttemptRepositoryInterface defines operations for verification attempt logging
type AttemptRepositoryInterface interface {
	Create(ctx context.Context, a *domain.VerificationAttempt) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.VerificationAttempt, error)
}
