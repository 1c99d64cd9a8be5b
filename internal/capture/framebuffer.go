package capture

import (
	"bytes"
	"context"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

// maxFrameBytes bounds a single pushed frame.
const maxFrameBytes = 4 << 20

// FrameBuffer is a FrameSource fed by a remote camera: the browser pushes
// encoded frames and the polling loop reads the latest one. Older frames are
// overwritten, never queued.
type FrameBuffer struct {
	mu     sync.Mutex
	frame  image.Image
	seq    uint64
	closed bool
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{closed: true}
}

// Opener returns an OpenFunc that reopens the buffer, for use with NewDevice.
func (b *FrameBuffer) Opener() OpenFunc {
	return func() (FrameSource, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed = false
		b.frame = nil
		return b, nil
	}
}

// Push decodes a JPEG or PNG frame and makes it the latest one.
func (b *FrameBuffer) Push(data []byte) error {
	if len(data) == 0 || len(data) > maxFrameBytes {
		return domain.ErrInvalidImage
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.ErrInvalidImage.WithError(err)
	}
	return b.PushImage(img)
}

// PushImage stores an already decoded frame.
func (b *FrameBuffer) PushImage(img image.Image) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrSourceClosed
	}
	b.frame = img
	b.seq++
	return nil
}

func (b *FrameBuffer) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrSourceClosed
	}
	if b.frame == nil {
		return nil, ErrNoFrame
	}
	return b.frame, nil
}

// Seq counts frames accepted since creation.
func (b *FrameBuffer) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

func (b *FrameBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.frame = nil
	return nil
}

var _ FrameSource = (*FrameBuffer)(nil)
