package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database (optional: settings fall back to memory, no attempt log or cache)
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Inventory backend
	BackendURL      string        `envconfig:"BACKEND_URL" default:"http://localhost:8080"`
	BackendTimeout  time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`
	BackendPageSize int           `envconfig:"BACKEND_PAGE_SIZE" default:"100"`

	// Provider
	FaceProvider     string `envconfig:"FACE_PROVIDER" default:"deepface"`
	DeepFaceURL      string `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel    string `envconfig:"DEEPFACE_MODEL" default:"Facenet512"`
	DeepFaceDetector string `envconfig:"DEEPFACE_DETECTOR" default:"opencv"`
	AWSRegion        string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Capture
	FacialRecognitionEnabled bool          `envconfig:"FACIAL_RECOGNITION_ENABLED" default:"true"`
	CapturePollInterval      time.Duration `envconfig:"CAPTURE_POLL_INTERVAL" default:"300ms"`
	CaptureMinScore          float64       `envconfig:"CAPTURE_MIN_SCORE" default:"0.5"`
	CaptureInputSize         int           `envconfig:"CAPTURE_INPUT_SIZE" default:"512"`
	CaptureStillMaxSide      int           `envconfig:"CAPTURE_STILL_MAX_SIDE" default:"640"`
	CaptureSessionTTL        time.Duration `envconfig:"CAPTURE_SESSION_TTL" default:"10m"`
	CameraDevice             int           `envconfig:"CAMERA_DEVICE" default:"-1"`

	// Dashboard
	DashboardCacheTTL time.Duration `envconfig:"DASHBOARD_CACHE_TTL" default:"1m"`

	// Security
	AuthRateLimit    int           `envconfig:"AUTH_RATE_LIMIT" default:"10"`
	VerifyRateLimit  int           `envconfig:"VERIFY_RATE_LIMIT" default:"10"`
	VerifyRateWindow time.Duration `envconfig:"VERIFY_RATE_WINDOW" default:"15m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.CaptureMinScore < 0 || cfg.CaptureMinScore > 1 {
		return nil, fmt.Errorf("load config: CAPTURE_MIN_SCORE must be within [0,1], got %v", cfg.CaptureMinScore)
	}
	if cfg.CapturePollInterval <= 0 {
		return nil, fmt.Errorf("load config: CAPTURE_POLL_INTERVAL must be positive")
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasDatabase reports whether Postgres-backed stores should be used.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// HasCamera reports whether a local webcam should feed capture sessions.
func (c *Config) HasCamera() bool {
	return c.CameraDevice >= 0
}
