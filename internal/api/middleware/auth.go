package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aicmo/auth-service/internal/api/metrics"
	"github.com/aicmo/auth-service/internal/core/domain"
	"github.com/aicmo/auth-service/internal/core/ports"
)

const (
	identityKey  = "identity"
	bearerPrefix = "Bearer "
)

// Auth verifies the bearer token and injects the identity into the context.
//
// A missing or malformed Authorization header is 401 Unauthorized; a token
// that is present but fails verification is 403 Invalid or expired token.
func Auth(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), bearerPrefix)
			if !ok || token == "" {
				metrics.AccessDecisionsTotal.WithLabelValues("unauthorized").Inc()
				return domain.ErrUnauthorized
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				metrics.AccessDecisionsTotal.WithLabelValues("invalid_token").Inc()
				return domain.ErrInvalidToken
			}

			c.Set(identityKey, identity)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity injected by Auth.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	identity, ok := c.Get(identityKey).(domain.Identity)
	return identity, ok
}
