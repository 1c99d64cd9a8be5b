package rekognition

// Config holds configuration for AWS Rekognition provider
type Config struct {
	// Region is the AWS region where Rekognition service will be used (e.g., "us-east-1")
	Region string

	// QualityFloor drops faces whose weighted sharpness/brightness score is below it (0-1).
	QualityFloor float64
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:       "us-east-1",
		QualityFloor: 0,
	}
}
