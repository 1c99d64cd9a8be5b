package mock

import (
	"context"
	"crypto/sha256"
	"math"
	"sync"
	"sync/atomic"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
	"github.com/saturnino-fabrica-de-software/estoque/internal/provider"
)

const descriptorDimension = 128

// Result is one scripted Detect outcome.
type Result struct {
	Detections []domain.Detection
	Err        error
}

// Provider implementa provider.DetectionProvider para testes e desenvolvimento.
// Sem script, toda imagem tem uma face centralizada.
type Provider struct {
	mu      sync.Mutex
	script  []Result
	loadErr error
	gate    chan struct{}

	loads atomic.Int32
	calls atomic.Int32
}

// New cria uma nova instância do MockProvider
func New() *Provider {
	return &Provider{}
}

// Script queues Detect outcomes. The last one repeats once the queue drains.
func (p *Provider) Script(results ...Result) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, results...)
	return p
}

// FailLoad makes LoadModels return err.
func (p *Provider) FailLoad(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadErr = err
	return p
}

// Hold makes Detect block until Release is called or its context ends.
func (p *Provider) Hold() *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate = make(chan struct{})
	return p
}

// Release unblocks held Detect calls.
func (p *Provider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gate != nil {
		close(p.gate)
		p.gate = nil
	}
}

// Calls returns how many times Detect was entered.
func (p *Provider) Calls() int {
	return int(p.calls.Load())
}

// Loads returns how many times LoadModels was called.
func (p *Provider) Loads() int {
	return int(p.loads.Load())
}

func (p *Provider) LoadModels(ctx context.Context) error {
	p.loads.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadErr
}

func (p *Provider) Detect(ctx context.Context, in provider.Input, opts provider.Options) ([]domain.Detection, error) {
	p.calls.Add(1)

	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if in.Empty() {
		return nil, domain.ErrInvalidImage
	}

	p.mu.Lock()
	var next *Result
	if len(p.script) > 0 {
		r := p.script[0]
		if len(p.script) > 1 {
			p.script = p.script[1:]
		}
		next = &r
	}
	p.mu.Unlock()

	if next != nil {
		if next.Err != nil {
			return nil, next.Err
		}
		return provider.Filter(next.Detections, opts.ScoreThreshold), nil
	}

	return p.centered(in)
}

// centered simula uma face no centro do quadro
func (p *Provider) centered(in provider.Input) ([]domain.Detection, error) {
	img, err := in.Image()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	return []domain.Detection{
		{
			Box: domain.BoundingBox{X: w * 0.25, Y: h * 0.2, Width: w * 0.5, Height: h * 0.6},
			Landmarks: []domain.Point{
				{X: w * 0.4, Y: h * 0.4},
				{X: w * 0.6, Y: h * 0.4},
				{X: w * 0.5, Y: h * 0.55},
			},
			Descriptor: descriptor(in),
			Score:      0.99,
		},
	}, nil
}

// descriptor gera um vetor determinístico baseado no hash da imagem
func descriptor(in provider.Input) []float64 {
	var hash [32]byte
	if len(in.Encoded) > 0 {
		hash = sha256.Sum256(in.Encoded)
	} else {
		b := in.Frame.Bounds()
		hash = sha256.Sum256([]byte{byte(b.Dx()), byte(b.Dx() >> 8), byte(b.Dy()), byte(b.Dy() >> 8)})
	}

	out := make([]float64, descriptorDimension)
	for i := range out {
		out[i] = (float64(hash[i%len(hash)])/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range out {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] /= norm
	}
	return out
}

var _ provider.DetectionProvider = (*Provider)(nil)
