package rekognition

import "errors"

var (
	// ErrInvalidCredentials indicates that AWS credentials are invalid or missing
	ErrInvalidCredentials = errors.New("invalid or missing AWS credentials")

	// ErrInvalidImage indicates the image is empty or outside Rekognition's size limits
	ErrInvalidImage = errors.New("invalid image for rekognition")

	// ErrNotReady indicates Detect was called before LoadModels succeeded
	ErrNotReady = errors.New("rekognition provider not ready")
)
