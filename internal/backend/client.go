// Package backend talks to the inventory REST backend: authentication, user
// registration and the receivement/exit listings the dashboard aggregates.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

const (
	DefaultPageSize = 100
	// maxPages stops a misbehaving backend from paging forever.
	maxPages = 1000
	// maxPageFetchers bounds concurrent page requests per list.
	maxPageFetchers = 4
)

// Config holds the configuration for the backend client
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

func DefaultConfig() Config {
	return Config{
		BaseURL:  "http://localhost:8080",
		Timeout:  10 * time.Second,
		PageSize: DefaultPageSize,
	}
}

// Client is the HTTP client for the inventory backend
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		logger:     logger.With("component", "backend"),
	}
}

// apiMessage is the backend's error envelope. Login failures reuse the token
// field for the message.
type apiMessage struct {
	Key     string `json:"key"`
	Message string `json:"message"`
	Token   string `json:"token"`
	Error   string `json:"error"`
}

func (m apiMessage) text() string {
	for _, s := range []string{m.Message, m.Error, m.Token} {
		if s != "" {
			return s
		}
	}
	return ""
}

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// doRequest executes a single JSON request. A non-empty token is sent as a
// bearer credential.
func (c *Client) doRequest(ctx context.Context, method, path, token string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ErrBackendUnavailable.WithError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ErrBackendUnavailable.WithError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg apiMessage
		_ = json.Unmarshal(respBody, &msg)
		return &StatusError{Status: resp.StatusCode, Message: msg.text()}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return domain.ErrBackendUnavailable.WithError(fmt.Errorf("invalid response: %w", err))
		}
	}
	return nil
}

// toAppError maps backend status errors onto the console's error taxonomy.
func toAppError(err error, unauthorized *domain.AppError) error {
	var se *StatusError
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden:
		return unauthorized.WithError(se)
	case se.Status >= 500:
		return domain.ErrBackendUnavailable.WithError(se)
	default:
		return &domain.AppError{
			Code:       domain.ErrBadRequest.Code,
			Message:    messageOr(se.Message, domain.ErrBadRequest.Message),
			StatusCode: domain.ErrBadRequest.StatusCode,
			Err:        se,
		}
	}
}

func messageOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
