package backend

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errEmptyToken = errors.New("backend returned an empty token")

// TokenExpired reports whether a backend token is unusable at now. The
// signature is not checked; only the backend can do that. A token without an
// exp claim never expires.
func TokenExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if exp == nil {
		return false
	}
	return exp.Time.Before(now)
}
