package capture

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const defaultStillQuality = 92

// EncodeStill renders img as the JPEG still sent for verification or
// registration. A positive maxSide bounds the longest side.
func EncodeStill(img image.Image, maxSide, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("encode still: nil frame")
	}
	if quality <= 0 || quality > 100 {
		quality = defaultStillQuality
	}
	if maxSide > 0 {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode still: %w", err)
	}
	return buf.Bytes(), nil
}
