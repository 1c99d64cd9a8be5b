package capture

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

var (
	ErrNoFrame      = errors.New("no frame available yet")
	ErrSourceClosed = errors.New("frame source closed")
)

// FrameSource yields the most recent frame of a live stream.
type FrameSource interface {
	// Frame returns the latest frame, ErrNoFrame when none has arrived yet.
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Acquirer hands a FrameSource to a capture session.
type Acquirer interface {
	Acquire(owner uuid.UUID) (FrameSource, error)
	Release(owner uuid.UUID)
}

// OpenFunc opens the underlying source.
type OpenFunc func() (FrameSource, error)

// Device owns one physical or virtual frame source and lends it to a single
// session at a time. The source is opened on Acquire and closed on Release.
type Device struct {
	open OpenFunc

	mu    sync.Mutex
	owner uuid.UUID
	src   FrameSource
}

func NewDevice(open OpenFunc) *Device {
	return &Device{open: open}
}

// Acquire opens the source for owner. Acquiring again with the same owner
// returns the open source; any other owner gets ErrSourceBusy.
func (d *Device) Acquire(owner uuid.UUID) (FrameSource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.src != nil {
		if d.owner == owner {
			return d.src, nil
		}
		return nil, domain.ErrSourceBusy
	}

	src, err := d.open()
	if err != nil {
		return nil, err
	}
	d.owner = owner
	d.src = src
	return src, nil
}

// Release closes the source if owner holds it.
func (d *Device) Release(owner uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.src == nil || d.owner != owner {
		return
	}
	_ = d.src.Close()
	d.src = nil
	d.owner = uuid.Nil
}

// Owner returns the session holding the source, uuid.Nil when free.
func (d *Device) Owner() uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.owner
}
