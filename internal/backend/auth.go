package backend

import (
	"context"
	"net/http"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

const (
	loginPath    = "/api/auth/login"
	registerPath = "/api/auth/register/user"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a backend token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp loginResponse
	err := c.doRequest(ctx, http.MethodPost, loginPath, "", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return "", toAppError(err, domain.ErrUnauthorized)
	}
	if resp.Token == "" {
		return "", domain.ErrBackendUnavailable.WithError(errEmptyToken)
	}
	return resp.Token, nil
}

// RegisterUser creates a user. token is the administrator's session token.
func (c *Client) RegisterUser(ctx context.Context, token string, reg domain.Registration) error {
	if err := c.doRequest(ctx, http.MethodPost, registerPath, token, reg, nil); err != nil {
		return toAppError(err, domain.ErrUnauthorized)
	}
	c.logger.InfoContext(ctx, "user registered", "role", string(reg.Role), "with_face", reg.FaceImage != "")
	return nil
}
