// Package flow sequences the console's authentication screens: verifying a
// captured face, logging in and registering users.
package flow

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/audit"
	"github.com/saturnino-fabrica-de-software/estoque/internal/capture"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
	"github.com/saturnino-fabrica-de-software/estoque/internal/provider"
	"github.com/saturnino-fabrica-de-software/estoque/internal/ratelimit"
)

// Verifier is implemented by verification.Client.
type Verifier interface {
	Verify(ctx context.Context, still []byte, identity string) domain.VerificationResult
}

// Backend is implemented by backend.Client.
type Backend interface {
	Login(ctx context.Context, email, password string) (string, error)
	RegisterUser(ctx context.Context, token string, reg domain.Registration) error
}

// Sessions is implemented by capture.Registry.
type Sessions interface {
	Get(id uuid.UUID) (*capture.Controller, error)
	Close(ctx context.Context, id uuid.UUID) error
}

type SettingsReader interface {
	Get(ctx context.Context) (domain.Settings, error)
}

type AttemptRecorder interface {
	Create(ctx context.Context, a *domain.VerificationAttempt) error
}

// Limiter is implemented by ratelimit.RateLimiter.
type Limiter interface {
	Check(ctx context.Context, key string, limit int) error
	Reset(ctx context.Context, key string) error
}

type Deps struct {
	Detector provider.DetectionProvider
	Verifier Verifier
	Backend  Backend
	Sessions Sessions
	Settings SettingsReader
	Attempts AttemptRecorder
	Audit    audit.Logger
	Logger   *slog.Logger

	// Limiter throttles verification attempts per identity. VerifyLimit <= 0
	// disables it.
	Limiter     Limiter
	VerifyLimit int
}

type Service struct {
	detector provider.DetectionProvider
	verifier Verifier
	backend  Backend
	sessions Sessions
	settings SettingsReader
	attempts AttemptRecorder
	audit    audit.Logger
	logger   *slog.Logger

	limiter     Limiter
	verifyLimit int

	detect   provider.Options
	minScore float64
	now      func() time.Time
}

func NewService(deps Deps, detect provider.Options, minScore float64) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Audit == nil {
		deps.Audit = &audit.NoOpLogger{}
	}
	return &Service{
		detector: deps.Detector,
		verifier: deps.Verifier,
		backend:  deps.Backend,
		sessions: deps.Sessions,
		settings: deps.Settings,
		attempts: deps.Attempts,
		audit:    deps.Audit,
		logger:   deps.Logger.With("component", "flow"),

		limiter:     deps.Limiter,
		verifyLimit: deps.VerifyLimit,

		detect:   detect,
		minScore: minScore,
		now:      time.Now,
	}
}

// VerifyResult is the outcome of one verification round-trip.
type VerifyResult struct {
	Result  domain.VerificationResult `json:"result"`
	Session domain.CaptureSession     `json:"session"`
}

// Verify checks that the session's still holds a face, posts it for
// verification and applies the outcome to the session. A negative outcome is
// returned both in the result and as its error.
func (s *Service) Verify(ctx context.Context, sessionID uuid.UUID, identity string) (VerifyResult, error) {
	ctrl, err := s.sessions.Get(sessionID)
	if err != nil {
		return VerifyResult{}, err
	}

	still := ctrl.Still()
	if len(still) == 0 {
		return VerifyResult{Session: ctrl.Snapshot()}, domain.ErrNoStillImage
	}
	if err := s.revalidate(ctx, still); err != nil {
		return VerifyResult{Session: ctrl.Snapshot()}, err
	}

	if identity == "" {
		identity = ctrl.Snapshot().ClaimedIdentity
	}
	if identity == "" {
		res := domain.ServerError("missing input")
		return VerifyResult{Result: res, Session: ctrl.Snapshot()}, res.Err()
	}
	key := ratelimit.VerifyKey(identity)
	if err := s.throttle(ctx, key); err != nil {
		return VerifyResult{Session: ctrl.Snapshot()}, err
	}

	ticket, err := ctrl.BeginVerify(identity)
	if err != nil {
		return VerifyResult{Session: ctrl.Snapshot()}, err
	}

	start := s.now()
	result := s.verifier.Verify(ctx, ticket.Still, ticket.Identity)
	latency := s.now().Sub(start)

	s.recordAttempt(ctx, sessionID, ticket.Identity, result, latency)

	if !ctrl.EndVerify(ctx, ticket, result) {
		return VerifyResult{Result: result, Session: ctrl.Snapshot()}, domain.ErrInvalidTransition.WithError(capture.ErrCanceled)
	}

	s.logEvent(ctx, sessionID, audit.EventFaceVerified, ticket.Identity, result.Ok(), result.Err())
	if result.Ok() && s.limiter != nil {
		if err := s.limiter.Reset(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to reset verify limit", slog.String("error", err.Error()))
		}
	}
	return VerifyResult{Result: result, Session: ctrl.Snapshot()}, result.Err()
}

// throttle counts a verification attempt against key. Only an exceeded limit
// blocks; a failing counter store is logged and let through.
func (s *Service) throttle(ctx context.Context, key string) error {
	if s.limiter == nil || s.verifyLimit <= 0 {
		return nil
	}
	err := s.limiter.Check(ctx, key, s.verifyLimit)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrRateLimitExceeded) {
		s.logger.WarnContext(ctx, "verification attempts exceeded", slog.String("key", key))
		return err
	}
	s.logger.WarnContext(ctx, "verify limit check failed", slog.String("error", err.Error()))
	return nil
}

// revalidate runs detection on the encoded still before it leaves the console.
func (s *Service) revalidate(ctx context.Context, still []byte) error {
	dets, err := s.detector.Detect(ctx, provider.FromStill(still), s.detect)
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return domain.ErrInternal.WithError(fmt.Errorf("revalidate still: %w", err))
	}
	if provider.Best(dets, s.minScore) == nil {
		return domain.ErrNoFaceDetected
	}
	return nil
}

func (s *Service) recordAttempt(ctx context.Context, sessionID uuid.UUID, identity string, result domain.VerificationResult, latency time.Duration) {
	if s.attempts == nil {
		return
	}
	attempt := &domain.VerificationAttempt{
		SessionID: sessionID,
		Identity:  identity,
		Outcome:   result.Outcome,
		Reason:    result.Reason,
		LatencyMs: latency.Milliseconds(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.logger.WarnContext(ctx, "failed to record verification attempt", slog.String("error", err.Error()))
	}
}

// LoginRequest carries the login form. SessionID names the capture session
// holding the verified face; administrators do not need one.
type LoginRequest struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
	SessionID *uuid.UUID  `json:"session_id,omitempty"`
}

// Login submits credentials to the backend. When facial recognition is on,
// users must present a session verified for the same email.
func (s *Service) Login(ctx context.Context, req LoginRequest) (string, error) {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return "", domain.ErrValidationFailed.WithError(errors.New("email and password are required"))
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return "", domain.ErrInternal.WithError(err)
	}

	needsFace := settings.FacialRecognition && req.Role != domain.RoleAdmin
	if needsFace {
		if err := s.requireVerified(req.SessionID, req.Email); err != nil {
			return "", err
		}
	}

	token, err := s.backend.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.logEvent(ctx, sessionOrNil(req.SessionID), audit.EventLogin, req.Email, false, err)
		return "", err
	}

	if req.SessionID != nil {
		_ = s.sessions.Close(ctx, *req.SessionID)
	}
	s.logEvent(ctx, sessionOrNil(req.SessionID), audit.EventLogin, req.Email, true, nil)
	s.logger.InfoContext(ctx, "login succeeded", slog.String("role", string(req.Role)), slog.Bool("face", needsFace))
	return token, nil
}

func (s *Service) requireVerified(sessionID *uuid.UUID, email string) error {
	if sessionID == nil {
		return domain.ErrFaceRequired
	}
	ctrl, err := s.sessions.Get(*sessionID)
	if err != nil {
		return domain.ErrFaceRequired.WithError(err)
	}
	snap := ctrl.Snapshot()
	if snap.Status != domain.StatusVerified || !strings.EqualFold(snap.VerifiedAs, email) {
		return domain.ErrFaceRequired
	}
	return nil
}

// RegisterRequest carries the user creation form. The face image comes from
// the capture session, if any.
type RegisterRequest struct {
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
	Status    string      `json:"status"`
	SessionID *uuid.UUID  `json:"session_id,omitempty"`
}

// Register creates a user on the backend on behalf of the administrator
// holding token. With facial recognition on, a captured still is mandatory.
func (s *Service) Register(ctx context.Context, token string, req RegisterRequest) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}

	var still []byte
	if req.SessionID != nil {
		ctrl, err := s.sessions.Get(*req.SessionID)
		if err != nil && settings.FacialRecognition {
			return domain.ErrFaceRequired.WithError(err)
		}
		if ctrl != nil {
			still = ctrl.Still()
		}
	}
	if settings.FacialRecognition && len(still) == 0 {
		return domain.ErrFaceRequired
	}

	reg := domain.Registration{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Role:     req.Role,
		Status:   req.Status,
	}
	if reg.Role == "" {
		reg.Role = domain.RoleUser
	}
	if reg.Status == "" {
		reg.Status = "ACTIVE"
	}
	if len(still) > 0 {
		reg.FaceImage = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(still)
	}

	if err := s.backend.RegisterUser(ctx, token, reg); err != nil {
		s.logEvent(ctx, sessionOrNil(req.SessionID), audit.EventRegistration, reg.Email, false, err)
		return err
	}

	if req.SessionID != nil {
		_ = s.sessions.Close(ctx, *req.SessionID)
	}
	s.logEvent(ctx, sessionOrNil(req.SessionID), audit.EventRegistration, reg.Email, true, nil)
	return nil
}

func (s *Service) logEvent(ctx context.Context, sessionID uuid.UUID, eventType audit.EventType, identity string, success bool, err error) {
	event := audit.Event{
		SessionID: sessionID,
		EventType: eventType,
		Identity:  identity,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	_ = s.audit.Log(ctx, event)
}

func sessionOrNil(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
