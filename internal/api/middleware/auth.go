package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

// LocalBackendToken is the key holding the caller's backend token.
const LocalBackendToken = "backend_token"

// TokenChecker reports whether a backend token has expired.
type TokenChecker func(token string, now time.Time) bool

// BackendToken requires a bearer token issued by the inventory backend and
// rejects it early when its exp claim has passed. The signature is checked
// by the backend itself on every forwarded call.
func BackendToken(expired TokenChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			return domain.ErrUnauthorized
		}
		if expired(token, time.Now()) {
			return domain.ErrTokenExpired
		}

		c.Locals(LocalBackendToken, token)
		return c.Next()
	}
}

// extractBearerToken extracts token from Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if auth == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// GetBackendToken retrieves the token stored by BackendToken.
func GetBackendToken(c *fiber.Ctx) (string, error) {
	token, ok := c.Locals(LocalBackendToken).(string)
	if !ok || token == "" {
		return "", domain.ErrUnauthorized
	}
	return token, nil
}
