// Package verification posts a captured still to the inventory backend and
// classifies the answer. One request per call; retries are the caller's choice.
package verification

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

const verifyPath = "/api/auth/verify-face"

// maxResponseBytes bounds the body read from the backend.
const maxResponseBytes = 1 << 20

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080",
		Timeout: 10 * time.Second,
	}
}

type request struct {
	Email string `json:"email"`
	Image string `json:"image"`
}

type response struct {
	Verified *bool    `json:"verified"`
	Distance *float64 `json:"distance,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Client calls the face verification endpoint.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		logger:     logger.With("component", "verification"),
	}
}

// Verify asks the backend whether still belongs to identity. It never returns
// an error: every failure is folded into the result.
func (c *Client) Verify(ctx context.Context, still []byte, identity string) domain.VerificationResult {
	identity = strings.TrimSpace(identity)
	if len(still) == 0 || identity == "" {
		return domain.ServerError("missing input")
	}

	body, err := json.Marshal(request{
		Email: identity,
		Image: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(still),
	})
	if err != nil {
		return domain.ServerError(fmt.Sprintf("marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.config.BaseURL, "/")+verifyPath, bytes.NewReader(body))
	if err != nil {
		return domain.NetworkError(fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "verification request failed", slog.String("error", err.Error()))
		return domain.NetworkError(fmt.Sprintf("do request: %v", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.NetworkError(fmt.Sprintf("read response: %v", err))
	}

	result := classify(resp.StatusCode, respBody)
	c.logger.InfoContext(ctx, "face verification",
		slog.String("outcome", string(result.Outcome)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)
	return result
}

func classify(status int, body []byte) domain.VerificationResult {
	var parsed response
	decodeErr := json.Unmarshal(body, &parsed)

	if status < 200 || status >= 300 {
		msg := fmt.Sprintf("backend returned status %d", status)
		if decodeErr == nil && parsed.Error != "" {
			msg += ": " + parsed.Error
		}
		return domain.NetworkError(msg)
	}

	if decodeErr != nil {
		return domain.ServerError(fmt.Sprintf("invalid response: %v", decodeErr))
	}
	if parsed.Error != "" {
		return domain.ServerError(parsed.Error)
	}
	if parsed.Verified == nil {
		return domain.ServerError("response has no verified field")
	}
	if !*parsed.Verified {
		return domain.NotMatched("face does not match the registered user")
	}
	return domain.Verified()
}
