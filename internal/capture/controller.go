// Package capture drives one face capture attempt: it polls a frame source,
// runs detection on a schedule, reports detections to an overlay and takes a
// single still once a face is present.
//
// Status transitions:
//
//	Idle -> ModelsLoading -> Streaming <-> FaceDetected -> Captured -> Verifying -> Verified
//	ModelsLoading -> Failed
//	Verifying -> Streaming (verification failed, still discarded)
//	Captured -> Streaming (retake)
//	any -> Idle (Cancel)
package capture

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/saturnino-fabrica-de-software/estoque/internal/audit"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
	"github.com/saturnino-fabrica-de-software/estoque/internal/provider"
)

const (
	DefaultPollInterval = 300 * time.Millisecond
	DefaultMinScore     = 0.5
	DefaultStillMaxSide = 640
)

// ErrCanceled is returned by Start when Cancel won the race against model loading.
var ErrCanceled = errors.New("capture canceled")

type Config struct {
	PollInterval time.Duration
	MinScore     float64
	Detect       provider.Options
	StillMaxSide int
	StillQuality int
}

func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		MinScore:     DefaultMinScore,
		Detect:       provider.DefaultOptions(),
		StillMaxSide: DefaultStillMaxSide,
		StillQuality: defaultStillQuality,
	}
}

// Deps are the collaborators of a Controller. Detector and Source are required.
type Deps struct {
	Detector provider.DetectionProvider
	Source   Acquirer
	Overlay  Overlay
	Notifier Notifier
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Audit    audit.Logger
}

// Controller is the state machine of one capture session. All methods are
// safe for concurrent use.
type Controller struct {
	id        uuid.UUID
	purpose   domain.CapturePurpose
	identity  string
	createdAt time.Time

	cfg      Config
	detector provider.DetectionProvider
	source   Acquirer
	overlay  Overlay
	notifier Notifier
	clock    clockwork.Clock
	logger   *slog.Logger
	audit    audit.Logger

	mu          sync.Mutex
	status      domain.CaptureStatus
	latest      *domain.Detection
	latestFrame image.Image
	score       float64
	still       []byte
	lastErr     string
	generation  uint64
	frames      FrameSource
	stopLoop    context.CancelFunc
	loopDone    chan struct{}
	verifying   bool
	verifiedAs  string
	touched     time.Time

	inflight atomic.Bool
	ticks    atomic.Int64
	skipped  atomic.Int64
}

func NewController(id uuid.UUID, purpose domain.CapturePurpose, identity string, cfg Config, deps Deps) *Controller {
	if id == uuid.Nil {
		id = uuid.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Overlay == nil {
		deps.Overlay = Discard{}
	}
	if deps.Notifier == nil {
		deps.Notifier = Discard{}
	}
	if deps.Audit == nil {
		deps.Audit = &audit.NoOpLogger{}
	}

	now := deps.Clock.Now()
	return &Controller{
		id:        id,
		purpose:   purpose,
		identity:  identity,
		createdAt: now,
		cfg:       cfg,
		detector:  deps.Detector,
		source:    deps.Source,
		overlay:   deps.Overlay,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		logger:    deps.Logger.With("component", "capture", "session_id", id.String()),
		audit:     deps.Audit,
		status:    domain.StatusIdle,
		touched:   now,
	}
}

func (c *Controller) ID() uuid.UUID { return c.id }

func (c *Controller) Purpose() domain.CapturePurpose { return c.purpose }

// Start loads the detection models and begins polling. It is only valid from
// Idle; a failed load leaves the session in Failed until Cancel.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != domain.StatusIdle {
		c.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	c.generation++
	gen := c.generation
	c.setStatusLocked(domain.StatusModelsLoading)
	c.mu.Unlock()

	if err := c.detector.LoadModels(ctx); err != nil {
		appErr := domain.ErrModelLoad.WithError(err)
		if !c.fail(gen, appErr) {
			return ErrCanceled
		}
		c.logger.ErrorContext(ctx, "failed to load models", slog.String("error", err.Error()))
		c.record(ctx, audit.EventModelsLoaded, false, err)
		return appErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return ErrCanceled
	}
	if err := c.streamLocked(); err != nil {
		c.failLocked(err)
		return err
	}

	c.logger.InfoContext(ctx, "capture started", slog.String("purpose", string(c.purpose)))
	c.record(ctx, audit.EventCaptureStarted, true, nil)
	return nil
}

// streamLocked acquires the frame source and starts a fresh polling loop
// under a new generation.
func (c *Controller) streamLocked() error {
	src, err := c.source.Acquire(c.id)
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return domain.ErrInternal.WithError(err)
	}

	c.generation++
	gen := c.generation
	c.frames = src
	c.latest = nil
	c.latestFrame = nil
	c.score = 0
	c.lastErr = ""

	loopCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticker := c.clock.NewTicker(c.cfg.PollInterval)
	c.stopLoop = stop
	c.loopDone = done

	c.setStatusLocked(domain.StatusStreaming)
	go c.poll(loopCtx, gen, src, ticker, done)
	return nil
}

// stopLocked cancels the polling loop and releases the frame source. The loop
// goroutine exits on its own; callers that need to wait use the returned channel.
func (c *Controller) stopLocked() <-chan struct{} {
	done := c.loopDone
	if c.stopLoop != nil {
		c.stopLoop()
	}
	c.stopLoop = nil
	c.loopDone = nil
	if c.frames != nil {
		c.source.Release(c.id)
		c.frames = nil
	}
	return done
}

func (c *Controller) poll(ctx context.Context, gen uint64, src FrameSource, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.tick(ctx, gen, src)
		}
	}
}

// tick starts one inference unless the previous one is still running.
func (c *Controller) tick(ctx context.Context, gen uint64, src FrameSource) {
	c.ticks.Add(1)

	if !c.inflight.CompareAndSwap(false, true) {
		c.skipped.Add(1)
		c.logger.Debug("tick skipped, inference in flight")
		return
	}

	go func() {
		defer c.inflight.Store(false)
		c.infer(ctx, gen, src)
	}()
}

func (c *Controller) infer(ctx context.Context, gen uint64, src FrameSource) {
	frame, err := src.Frame(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrNoFrame) || errors.Is(err, ErrSourceClosed) {
			return
		}
		c.logger.Warn("failed to read frame", slog.String("error", err.Error()))
		c.apply(gen, nil, nil, 0)
		return
	}

	dets, err := c.detector.Detect(ctx, provider.FromFrame(frame), c.cfg.Detect)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("inference failed", slog.String("error", err.Error()))
		dets = nil
	}

	var top float64
	for _, d := range dets {
		if d.Score > top {
			top = d.Score
		}
	}
	c.apply(gen, provider.Best(dets, c.cfg.MinScore), frame, top)
}

// apply publishes an inference result if its generation is still current.
// Overlay and notifier calls are made under the lock so a Cancel can never be
// followed by a stale draw.
func (c *Controller) apply(gen uint64, best *domain.Detection, frame image.Image, score float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen || !c.status.Live() {
		return
	}

	c.score = score
	if best != nil {
		c.latest = best
		c.latestFrame = frame
		c.overlay.Draw(c.id, *best)
		c.setStatusLocked(domain.StatusFaceDetected)
		return
	}

	hadFace := c.latest != nil
	c.latest = nil
	c.latestFrame = nil
	if hadFace {
		c.overlay.Clear(c.id)
	}
	c.setStatusLocked(domain.StatusStreaming)
}

// Capture takes the still from the frame of the current detection and stops
// polling. Without a detection it warns and keeps streaming.
func (c *Controller) Capture(ctx context.Context) (domain.CaptureSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched = c.clock.Now()

	switch {
	case c.status == domain.StatusFaceDetected && c.latest != nil && c.latestFrame != nil:
	case c.status.Live():
		c.notifier.Notify(c.id, Warning(domain.ErrNoFaceDetected))
		return c.snapshotLocked(), domain.ErrNoFaceDetected
	default:
		return c.snapshotLocked(), domain.ErrInvalidTransition
	}

	still, err := EncodeStill(c.latestFrame, c.cfg.StillMaxSide, c.cfg.StillQuality)
	if err != nil {
		return c.snapshotLocked(), domain.ErrInvalidImage.WithError(err)
	}

	c.generation++
	c.stopLocked()
	c.still = still
	c.latestFrame = nil
	c.overlay.Clear(c.id)
	c.setStatusLocked(domain.StatusCaptured)

	c.logger.InfoContext(ctx, "still captured", slog.Int("bytes", len(still)), slog.Float64("score", c.latest.Score))
	c.record(ctx, audit.EventStillCaptured, true, nil)
	return c.snapshotLocked(), nil
}

// Retake discards the still and resumes streaming.
func (c *Controller) Retake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched = c.clock.Now()

	if c.status != domain.StatusCaptured {
		return domain.ErrInvalidTransition
	}
	c.still = nil
	if err := c.streamLocked(); err != nil {
		c.failLocked(err)
		return err
	}
	return nil
}

// Ticket identifies one verification round-trip.
type Ticket struct {
	Still      []byte
	Identity   string
	generation uint64
}

// BeginVerify moves a captured session to Verifying and hands out the still.
// Only one verification may be pending per session. An empty identity falls
// back to the one claimed when the session was created.
func (c *Controller) BeginVerify(identity string) (Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched = c.clock.Now()

	if c.verifying {
		return Ticket{}, domain.ErrVerificationInFlight
	}
	if c.status != domain.StatusCaptured || len(c.still) == 0 {
		return Ticket{}, domain.ErrNoStillImage
	}
	if identity == "" {
		identity = c.identity
	}

	c.verifying = true
	c.setStatusLocked(domain.StatusVerifying)

	still := make([]byte, len(c.still))
	copy(still, c.still)
	return Ticket{Still: still, Identity: identity, generation: c.generation}, nil
}

// EndVerify applies a verification outcome. It reports false when the session
// was canceled meanwhile and the outcome was discarded. On failure the still
// is dropped and the session streams again.
func (c *Controller) EndVerify(ctx context.Context, t Ticket, result domain.VerificationResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != t.generation || c.status != domain.StatusVerifying {
		c.logger.DebugContext(ctx, "verification outcome discarded", slog.String("outcome", string(result.Outcome)))
		return false
	}
	c.verifying = false

	if result.Ok() {
		c.verifiedAs = t.Identity
		c.setStatusLocked(domain.StatusVerified)
		return true
	}

	failure := result.Err()
	c.still = nil
	c.notifier.Notify(c.id, Failure(failure))
	if err := c.streamLocked(); err != nil {
		c.failLocked(err)
		return true
	}
	c.lastErr = failure.Error()
	return true
}

// Cancel returns the session to Idle from any status. Polling stops, pending
// inference and verification results are discarded, the frame source is
// released and the overlay cleared.
func (c *Controller) Cancel(ctx context.Context) {
	c.mu.Lock()
	prev := c.status
	c.generation++
	done := c.stopLocked()
	c.latest = nil
	c.latestFrame = nil
	c.score = 0
	c.still = nil
	c.lastErr = ""
	c.verifying = false
	c.verifiedAs = ""
	c.overlay.Clear(c.id)
	c.setStatusLocked(domain.StatusIdle)
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	if prev != domain.StatusIdle {
		c.record(ctx, audit.EventCaptureCanceled, true, nil)
	}
}

// Still returns a copy of the captured image, nil when there is none.
func (c *Controller) Still() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.still) == 0 {
		return nil
	}
	out := make([]byte, len(c.still))
	copy(out, c.still)
	return out
}

// Snapshot returns a read-only view of the session.
func (c *Controller) Snapshot() domain.CaptureSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() domain.CaptureSession {
	s := domain.CaptureSession{
		ID:              c.id,
		Purpose:         c.purpose,
		Status:          c.status,
		Score:           c.score,
		ClaimedIdentity: c.identity,
		VerifiedAs:      c.verifiedAs,
		LastError:       c.lastErr,
		CreatedAt:       c.createdAt,
	}
	if c.latest != nil {
		d := *c.latest
		s.LatestDetection = &d
	}
	if len(c.still) > 0 {
		s.Still = make([]byte, len(c.still))
		copy(s.Still, c.still)
	}
	return s
}

// Status returns the current status.
func (c *Controller) Status() domain.CaptureStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Ticks counts poll ticks since creation; Skipped counts those that found an
// inference still running.
func (c *Controller) Ticks() int64   { return c.ticks.Load() }
func (c *Controller) Skipped() int64 { return c.skipped.Load() }

// IdleSince reports when the session was last touched by a caller.
func (c *Controller) IdleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched
}

// Touch marks the session as in use.
func (c *Controller) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched = c.clock.Now()
}

func (c *Controller) fail(gen uint64, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.failLocked(err)
	return true
}

// failLocked moves to Failed and surfaces err once.
func (c *Controller) failLocked(err error) {
	c.stopLocked()
	c.lastErr = err.Error()
	c.latest = nil
	c.latestFrame = nil
	c.overlay.Clear(c.id)
	c.setStatusLocked(domain.StatusFailed)
	c.notifier.Notify(c.id, Failure(err))
}

func (c *Controller) setStatusLocked(s domain.CaptureStatus) {
	if c.status == s {
		return
	}
	c.status = s
	c.notifier.StatusChanged(c.id, s)
}

func (c *Controller) record(ctx context.Context, eventType audit.EventType, success bool, err error) {
	event := audit.Event{
		SessionID: c.id,
		EventType: eventType,
		Identity:  c.identity,
		Success:   success,
		Metadata:  map[string]string{"purpose": string(c.purpose)},
	}
	if err != nil {
		event.Error = err.Error()
	}
	_ = c.audit.Log(ctx, event)
}
