// @title                       auth-service API
// @version                     1.0
// @description                 Username/password signup, login, logout and a role-gated admin resource.
// @BasePath                    /api
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package api

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/aicmo/auth-service/docs"
	"github.com/aicmo/auth-service/internal/api/handler"
	"github.com/aicmo/auth-service/internal/api/middleware"
	"github.com/aicmo/auth-service/internal/core/domain"
	"github.com/aicmo/auth-service/internal/core/ports"
)

// Deps are the collaborators the router wires into routes.
type Deps struct {
	AuthService ports.AuthService
	Verifier    ports.TokenVerifier
	// Limiter guards login and signup; nil disables rate limiting.
	Limiter middleware.AttemptLimiter
	// TrustProxy takes the client IP from X-Forwarded-For when the hop is a
	// private or loopback address. Otherwise the socket peer is used.
	TrustProxy bool
	// Checks are run by the readiness probe.
	Checks map[string]handler.DependencyCheck
	Log    zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)
	e.IPExtractor = echo.ExtractIPDirect()
	if deps.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	}

	// --- Global middleware ---
	httpMetrics := prometheus.NewRegistry()

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomiddleware.CORS())
	// Metrics wrap the logger so they observe the status the error handler wrote.
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "http",
		Registerer: httpMetrics,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || strings.HasPrefix(c.Path(), "/swagger")
		},
	}))
	e.Use(requestLogger(deps.Log))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.AuthService)
	adminHandler := handler.NewAdminHandler()
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Checks)

	api := e.Group("/api")

	// --- Auth routes ---
	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.Signup, limit(deps, "signup")...)
	auth.POST("/login", authHandler.Login, limit(deps, "login")...)
	auth.POST("/logout", authHandler.Logout)

	// --- Role-gated routes ---
	api.GET("/admin", adminHandler.Panel,
		middleware.Auth(deps.Verifier),
		middleware.RequireRole(domain.RoleAdmin),
	)

	// --- Operational routes (no auth required) ---
	e.GET("/", healthHandler.Root)
	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{httpMetrics, prometheus.DefaultGatherer},
	}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func limit(deps Deps, scope string) []echo.MiddlewareFunc {
	if deps.Limiter == nil {
		return nil
	}
	return []echo.MiddlewareFunc{middleware.RateLimit(deps.Limiter, scope, deps.Log)}
}

// requestLogger emits one zerolog event per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Status >= 500 {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
