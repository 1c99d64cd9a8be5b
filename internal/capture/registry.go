package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

var errCameraBacked = errors.New("session reads from the local camera")

type session struct {
	ctrl   *Controller
	buffer *FrameBuffer
}

// Registry owns the live capture sessions. With a camera Device every session
// competes for it; without one each session gets its own FrameBuffer fed by
// the browser.
type Registry struct {
	cfg    Config
	deps   Deps
	camera *Device
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// NewRegistry creates a registry. deps.Source is ignored; camera may be nil.
func NewRegistry(cfg Config, deps Deps, camera *Device, ttl time.Duration) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Registry{
		cfg:      cfg,
		deps:     deps,
		camera:   camera,
		ttl:      ttl,
		sessions: make(map[uuid.UUID]*session),
	}
}

// Create registers a new session and starts it. The controller is returned
// even when Start fails so the caller can report its Failed snapshot.
func (r *Registry) Create(ctx context.Context, purpose domain.CapturePurpose, identity string) (*Controller, error) {
	s := &session{}
	deps := r.deps
	if r.camera != nil {
		deps.Source = r.camera
	} else {
		s.buffer = NewFrameBuffer()
		deps.Source = NewDevice(s.buffer.Opener())
	}

	s.ctrl = NewController(uuid.New(), purpose, identity, r.cfg, deps)

	r.mu.Lock()
	r.sessions[s.ctrl.ID()] = s
	r.mu.Unlock()

	return s.ctrl, s.ctrl.Start(ctx)
}

// Get returns the session controller.
func (r *Registry) Get(id uuid.UUID) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.ctrl, nil
}

// PushFrame feeds an encoded frame to a browser-backed session.
func (r *Registry) PushFrame(id uuid.UUID, data []byte) error {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	if s.buffer == nil {
		return domain.ErrBadRequest.WithError(errCameraBacked)
	}
	s.ctrl.Touch()
	return s.buffer.Push(data)
}

// Close cancels the session and forgets it.
func (r *Registry) Close(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	s.ctrl.Cancel(ctx)
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Run reaps sessions idle for longer than the TTL until ctx is done, then
// cancels every remaining session.
func (r *Registry) Run(ctx context.Context) {
	logger := r.deps.Logger.With("component", "capture_registry")
	interval := r.ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := r.deps.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			logger.Info("capture sessions closed")
			return
		case <-ticker.Chan():
			if n := r.reap(ctx); n > 0 {
				logger.Info("expired capture sessions", slog.Int("count", n))
			}
		}
	}
}

func (r *Registry) reap(ctx context.Context) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.deps.Clock.Now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*session
	for id, s := range r.sessions {
		if s.ctrl.IdleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.ctrl.Cancel(ctx)
	}
	return len(expired)
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[uuid.UUID]*session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.ctrl.Cancel(context.Background())
	}
}
