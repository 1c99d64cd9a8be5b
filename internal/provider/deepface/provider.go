package deepface

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
	"github.com/saturnino-fabrica-de-software/estoque/internal/provider"
)

// Provider implements provider.DetectionProvider using the DeepFace API
type Provider struct {
	client *Client

	mu     sync.Mutex
	loaded bool
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

// LoadModels checks the DeepFace service is reachable. It only succeeds once;
// later calls return immediately.
func (p *Provider) LoadModels(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return nil
	}
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	p.loaded = true
	return nil
}

// Detect sends the input to /represent and converts each result into a
// detection in original frame coordinates. The facial area becomes the box,
// the embedding the descriptor and the reported eye/nose/mouth points the
// landmarks.
func (p *Provider) Detect(ctx context.Context, in provider.Input, opts provider.Options) ([]domain.Detection, error) {
	p.mu.Lock()
	loaded := p.loaded
	p.mu.Unlock()
	if !loaded {
		return nil, ErrModelsNotLoaded
	}

	prepared, err := in.Prepare(opts.InputSize)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	resp, err := p.client.Represent(ctx, base64.StdEncoding.EncodeToString(prepared.Data))
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	detections := make([]domain.Detection, 0, len(resp.Results))
	for _, result := range resp.Results {
		if result.FacialArea.W <= 0 || result.FacialArea.H <= 0 {
			continue
		}
		scale := prepared.Scale
		detections = append(detections, domain.Detection{
			Box: domain.BoundingBox{
				X:      float64(result.FacialArea.X) * scale,
				Y:      float64(result.FacialArea.Y) * scale,
				Width:  float64(result.FacialArea.W) * scale,
				Height: float64(result.FacialArea.H) * scale,
			},
			Landmarks:  landmarks(result.FacialArea, scale),
			Descriptor: result.Embedding,
			Score:      result.FaceConfidence,
		})
	}

	return provider.Filter(detections, opts.ScoreThreshold), nil
}

func landmarks(area FacialArea, scale float64) []domain.Point {
	var points []domain.Point
	for _, p := range []*[2]int{area.LeftEye, area.RightEye, area.Nose, area.MouthL, area.MouthR} {
		if p == nil {
			continue
		}
		points = append(points, domain.Point{X: float64(p[0]) * scale, Y: float64(p[1]) * scale})
	}
	return points
}

// Ensure Provider implements provider.DetectionProvider
var _ provider.DetectionProvider = (*Provider)(nil)
