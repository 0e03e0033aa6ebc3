package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/aicmo/auth-service/internal/api/metrics"
	"github.com/aicmo/auth-service/internal/core/domain"
)

// AttemptLimiter abstracts the attempt counter (Redis).
type AttemptLimiter interface {
	Allow(ctx context.Context, scope, subject string) (bool, error)
}

// RateLimit rejects requests from a client IP once it exceeds the limiter's
// budget for scope. Limiter failures are logged and the request is allowed.
func RateLimit(limiter AttemptLimiter, scope string, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, err := limiter.Allow(c.Request().Context(), scope, c.RealIP())
			if err != nil {
				log.Warn().Err(err).Str("scope", scope).Msg("attempt limiter failed, allowing request")
				return next(c)
			}
			if !allowed {
				metrics.RateLimitedTotal.WithLabelValues(scope).Inc()
				return domain.ErrTooManyAttempts
			}
			return next(c)
		}
	}
}
