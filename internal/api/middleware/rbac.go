package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/aicmo/auth-service/internal/api/metrics"
	"github.com/aicmo/auth-service/internal/core/domain"
)

// RequireRole enforces role-based access control. It must run after Auth.
func RequireRole(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := IdentityFrom(c)
			if !ok {
				metrics.AccessDecisionsTotal.WithLabelValues("unauthorized").Inc()
				return domain.ErrUnauthorized
			}
			if _, ok := allowed[identity.Role]; !ok {
				metrics.AccessDecisionsTotal.WithLabelValues("forbidden").Inc()
				return domain.ErrForbidden
			}

			metrics.AccessDecisionsTotal.WithLabelValues("allowed").Inc()
			return next(c)
		}
	}
}
