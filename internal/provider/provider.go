package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

const (
	// DefaultInputSize matches the desktop detector resolution.
	DefaultInputSize = 512
	// MobileInputSize trades accuracy for latency on small devices.
	MobileInputSize = 224
	// DefaultScoreThreshold is the minimum detector confidence reported back.
	DefaultScoreThreshold = 0.5

	jpegQuality = 90
)

var ErrEmptyInput = errors.New("empty detection input")

// DetectionProvider locates faces in frames. LoadModels must succeed before
// Detect is called; implementations backed by a remote service use it as a
// reachability check.
type DetectionProvider interface {
	// LoadModels prepares the detector. Calling it again after success is a no-op.
	LoadModels(ctx context.Context) error

	// Detect returns every face found in the input with score >= opts.ScoreThreshold.
	// An empty slice means no face; an error means the frame could not be processed.
	Detect(ctx context.Context, in Input, opts Options) ([]domain.Detection, error)
}

// Input is either a decoded live frame or an already encoded still.
type Input struct {
	Frame   image.Image
	Encoded []byte
}

// FromFrame wraps a decoded frame.
func FromFrame(img image.Image) Input {
	return Input{Frame: img}
}

// FromStill wraps an encoded image (JPEG or PNG).
func FromStill(data []byte) Input {
	return Input{Encoded: data}
}

func (in Input) Empty() bool {
	return in.Frame == nil && len(in.Encoded) == 0
}

// Image returns the decoded input, decoding Encoded when needed.
func (in Input) Image() (image.Image, error) {
	if in.Frame != nil {
		return in.Frame, nil
	}
	if len(in.Encoded) == 0 {
		return nil, ErrEmptyInput
	}
	img, err := imaging.Decode(bytes.NewReader(in.Encoded), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return img, nil
}

// Prepared is an input encoded for upload. Width and Height are the original
// frame dimensions; Scale converts coordinates in the uploaded image back to
// the original frame.
type Prepared struct {
	Data   []byte
	Width  int
	Height int
	Scale  float64
}

// Prepare encodes the input as JPEG with its longest side bounded by maxSide.
// Encoded stills are passed through untouched when maxSide <= 0.
func (in Input) Prepare(maxSide int) (Prepared, error) {
	if in.Frame == nil && len(in.Encoded) > 0 && maxSide <= 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Encoded))
		if err != nil {
			return Prepared{}, fmt.Errorf("decode input: %w", err)
		}
		return Prepared{Data: in.Encoded, Width: cfg.Width, Height: cfg.Height, Scale: 1}, nil
	}

	img, err := in.Image()
	if err != nil {
		return Prepared{}, err
	}
	bounds := img.Bounds()

	out := img
	if maxSide > 0 {
		out = imaging.Fit(img, maxSide, maxSide, imaging.Linear)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return Prepared{}, fmt.Errorf("encode input: %w", err)
	}

	scale := 1.0
	if w := out.Bounds().Dx(); w > 0 {
		scale = float64(bounds.Dx()) / float64(w)
	}

	return Prepared{Data: buf.Bytes(), Width: bounds.Dx(), Height: bounds.Dy(), Scale: scale}, nil
}

// Options tune a single Detect call.
type Options struct {
	InputSize      int
	ScoreThreshold float64
}

func DefaultOptions() Options {
	return Options{
		InputSize:      DefaultInputSize,
		ScoreThreshold: DefaultScoreThreshold,
	}
}

// Filter drops detections below the threshold.
func Filter(dets []domain.Detection, threshold float64) []domain.Detection {
	out := make([]domain.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Score >= threshold {
			out = append(out, d)
		}
	}
	return out
}

// Best returns the highest scoring detection at or above minScore, nil when
// there is none.
func Best(dets []domain.Detection, minScore float64) *domain.Detection {
	var best *domain.Detection
	for i := range dets {
		if dets[i].Score < minScore {
			continue
		}
		if best == nil || dets[i].Score > best.Score {
			d := dets[i]
			best = &d
		}
	}
	return best
}
