package capture

import (
	"errors"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

// Overlay draws detections over the live preview. Implementations must not
// block: they are called with the session lock held.
type Overlay interface {
	Draw(sessionID uuid.UUID, d domain.Detection)
	Clear(sessionID uuid.UUID)
}

// Notifier receives status changes and user-facing messages. Same rule as
// Overlay: no blocking.
type Notifier interface {
	StatusChanged(sessionID uuid.UUID, status domain.CaptureStatus)
	Notify(sessionID uuid.UUID, n Notification)
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a toast-style message for the user.
type Notification struct {
	Level   Level  `json:"level"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func Warning(err error) Notification {
	return notification(LevelWarning, err)
}

func Failure(err error) Notification {
	return notification(LevelError, err)
}

func notification(level Level, err error) Notification {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return Notification{Level: level, Code: appErr.Code, Message: appErr.Message}
	}
	return Notification{Level: level, Message: err.Error()}
}

// Discard is an Overlay and Notifier that drops everything.
type Discard struct{}

func (Discard) Draw(uuid.UUID, domain.Detection)              {}
func (Discard) Clear(uuid.UUID)                               {}
func (Discard) StatusChanged(uuid.UUID, domain.CaptureStatus) {}
func (Discard) Notify(uuid.UUID, Notification)                {}
