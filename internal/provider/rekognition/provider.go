package rekognition

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/audit"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
	"github.com/saturnino-fabrica-de-software/estoque/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100

	providerName = "rekognition"
)

// Provider implements provider.DetectionProvider using AWS Rekognition DetectFaces.
type Provider struct {
	client      *Client
	auditLogger audit.Logger
	ready       atomic.Bool
}

// ProviderOption defines optional configuration for Provider
type ProviderOption func(*Provider)

// WithAuditLogger sets the audit logger for the provider
func WithAuditLogger(logger audit.Logger) ProviderOption {
	return func(p *Provider) {
		p.auditLogger = logger
	}
}

// Ensure Provider implements provider.DetectionProvider interface at compile time
var _ provider.DetectionProvider = (*Provider)(nil)

// NewProvider creates a Rekognition provider using the default AWS credential chain
func NewProvider(ctx context.Context, cfg Config, opts ...ProviderOption) (*Provider, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}
	return NewProviderWithClient(client, opts...), nil
}

func NewProviderWithClient(client *Client, opts ...ProviderOption) *Provider {
	p := &Provider{client: client}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// logAudit logs an audit event if an audit logger is configured
// Audit failure does not affect the operation (fire-and-forget)
func (p *Provider) logAudit(ctx context.Context, eventType audit.EventType, success bool, err error, metadata map[string]string) {
	if p.auditLogger == nil {
		return
	}

	event := audit.Event{
		SessionID: sessionFrom(ctx),
		EventType: eventType,
		Provider:  providerName,
		Success:   success,
		Metadata:  metadata,
	}

	if err != nil {
		event.Error = err.Error()
	}

	_ = p.auditLogger.Log(ctx, event)
}

type sessionKey struct{}

// WithSession tags ctx so audit events carry the capture session.
func WithSession(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

func sessionFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(sessionKey{}).(uuid.UUID)
	return id
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

// LoadModels verifies credentials and region. Rekognition hosts its models,
// so there is nothing to download.
func (p *Provider) LoadModels(ctx context.Context) error {
	if p.ready.Load() {
		return nil
	}
	if err := p.client.Ping(ctx); err != nil {
		p.logAudit(ctx, audit.EventModelsLoaded, false, err, nil)
		return fmt.Errorf("load models: %w", err)
	}
	p.ready.Store(true)
	p.logAudit(ctx, audit.EventModelsLoaded, true, nil, nil)
	return nil
}

// Detect runs DetectFaces and converts Rekognition's ratio coordinates into
// frame pixels. Confidence (0-100) becomes the 0-1 score.
func (p *Provider) Detect(ctx context.Context, in provider.Input, opts provider.Options) ([]domain.Detection, error) {
	if !p.ready.Load() {
		return nil, ErrNotReady
	}

	prepared, err := in.Prepare(opts.InputSize)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	if err := validateImage(prepared.Data); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	details, err := p.client.DetectFaces(ctx, prepared.Data)
	if err != nil {
		p.logAudit(ctx, audit.EventFaceDetected, false, err, map[string]string{
			"image_size": strconv.Itoa(len(prepared.Data)),
		})
		return nil, err
	}

	w, h := float64(prepared.Width), float64(prepared.Height)
	detections := make([]domain.Detection, 0, len(details))
	for _, detail := range details {
		if detail.BoundingBox == nil || detail.Confidence == nil {
			continue
		}
		if p.calculateQualityScore(detail.Quality) < p.client.config.QualityFloor {
			continue
		}

		d := domain.Detection{
			Box: domain.BoundingBox{
				X:      float64(value(detail.BoundingBox.Left)) * w,
				Y:      float64(value(detail.BoundingBox.Top)) * h,
				Width:  float64(value(detail.BoundingBox.Width)) * w,
				Height: float64(value(detail.BoundingBox.Height)) * h,
			},
			Score: float64(*detail.Confidence) / 100,
		}
		for _, lm := range detail.Landmarks {
			if lm.X == nil || lm.Y == nil {
				continue
			}
			d.Landmarks = append(d.Landmarks, domain.Point{X: float64(*lm.X) * w, Y: float64(*lm.Y) * h})
		}
		detections = append(detections, d)
	}

	// Successful detections run every poll tick and are not audited.
	return provider.Filter(detections, opts.ScoreThreshold), nil
}

func value(f *float32) float32 {
	if f == nil {
		return 0
	}
	return *f
}

// calculateQualityScore computes an overall quality score from Rekognition quality metrics
// Returns a score between 0.0 (poor quality) and 1.0 (excellent quality)
func (p *Provider) calculateQualityScore(quality *types.ImageQuality) float64 {
	if quality == nil {
		return 0.0
	}

	brightness := 0.0
	sharpness := 0.0

	if quality.Brightness != nil {
		brightness = float64(*quality.Brightness) / 100.0
	}

	if quality.Sharpness != nil {
		sharpness = float64(*quality.Sharpness) / 100.0
	}

	// Sharpness dominates landmark accuracy
	return brightness*0.3 + sharpness*0.7
}
