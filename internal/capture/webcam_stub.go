//go:build !gocv

package capture

import "errors"

var ErrNoCameraSupport = errors.New("built without camera support (rebuild with -tags gocv)")

// WebcamOpener reports that no camera backend is compiled in.
func WebcamOpener(device int) OpenFunc {
	return func() (FrameSource, error) {
		return nil, ErrNoCameraSupport
	}
}
