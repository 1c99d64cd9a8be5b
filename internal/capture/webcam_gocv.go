//go:build gocv

package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Webcam reads frames from a local camera through OpenCV.
type Webcam struct {
	mu     sync.Mutex
	device int
	vc     *gocv.VideoCapture
	mat    gocv.Mat
}

// OpenWebcam opens the camera with the given index.
func OpenWebcam(device int) (*Webcam, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", device, err)
	}
	return &Webcam{device: device, vc: vc, mat: gocv.NewMat()}, nil
}

// WebcamOpener opens the camera lazily, once per Device.Acquire.
func WebcamOpener(device int) OpenFunc {
	return func() (FrameSource, error) {
		return OpenWebcam(device)
	}
}

func (w *Webcam) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.vc == nil {
		return nil, ErrSourceClosed
	}
	if ok := w.vc.Read(&w.mat); !ok {
		return nil, fmt.Errorf("read camera %d: device closed", w.device)
	}
	if w.mat.Empty() {
		return nil, ErrNoFrame
	}

	img, err := w.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.vc == nil {
		return nil
	}
	err := w.vc.Close()
	_ = w.mat.Close()
	w.vc = nil
	return err
}

var _ FrameSource = (*Webcam)(nil)
