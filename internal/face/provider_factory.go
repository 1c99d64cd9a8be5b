package face

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/estoque/internal/audit"
	"github.com/saturnino-fabrica-de-software/estoque/internal/config"
	"github.com/saturnino-fabrica-de-software/estoque/internal/provider"
	"github.com/saturnino-fabrica-de-software/estoque/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/estoque/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/estoque/internal/provider/rekognition"
)

// ProviderType defines supported face detection provider types
type ProviderType string

const (
	// ProviderTypeDeepFace is the DeepFace provider (self-hosted)
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeRekognition is the AWS Rekognition provider (cloud)
	ProviderTypeRekognition ProviderType = "rekognition"
	// ProviderTypeMock always finds one centered face (local development)
	ProviderTypeMock ProviderType = "mock"
)

// NewDetectionProvider creates a DetectionProvider based on configuration.
// Models are not loaded here; each capture session calls LoadModels when it starts.
//
// Environment variables:
//   - FACE_PROVIDER: "deepface", "rekognition" or "mock" (default: "deepface")
//   - DEEPFACE_URL, DEEPFACE_MODEL, DEEPFACE_DETECTOR: DeepFace API settings
//   - AWS_REGION: AWS region for Rekognition (credentials via the AWS SDK chain)
func NewDetectionProvider(ctx context.Context, cfg *config.Config, auditLogger audit.Logger) (provider.DetectionProvider, error) {
	providerType := ProviderType(cfg.FaceProvider)

	switch providerType {
	case ProviderTypeRekognition:
		return createRekognitionProvider(ctx, cfg, auditLogger)

	case ProviderTypeDeepFace, "":
		return createDeepFaceProvider(cfg), nil

	case ProviderTypeMock:
		return mock.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s)",
			cfg.FaceProvider, ProviderTypeDeepFace, ProviderTypeRekognition, ProviderTypeMock)
	}
}

// createRekognitionProvider creates an AWS Rekognition provider instance
func createRekognitionProvider(ctx context.Context, cfg *config.Config, auditLogger audit.Logger) (provider.DetectionProvider, error) {
	rekogConfig := rekognition.DefaultConfig()
	if cfg.AWSRegion != "" {
		rekogConfig.Region = cfg.AWSRegion
	}

	var opts []rekognition.ProviderOption
	if auditLogger != nil {
		opts = append(opts, rekognition.WithAuditLogger(auditLogger))
	}

	prov, err := rekognition.NewProvider(ctx, rekogConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("create rekognition provider: %w", err)
	}

	return prov, nil
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.Config) provider.DetectionProvider {
	deepfaceConfig := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}
	if cfg.DeepFaceDetector != "" {
		deepfaceConfig.Detector = cfg.DeepFaceDetector
	}

	return deepface.NewProvider(deepfaceConfig)
}
