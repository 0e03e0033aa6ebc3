package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aicmo/auth-service/internal/api/metrics"
	"github.com/aicmo/auth-service/internal/core/domain"
	"github.com/aicmo/auth-service/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signupResponse struct {
	Message string          `json:"message"`
	User    domain.Identity `json:"user"`
}

type loginResponse struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Signup creates a new normal user.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Username and password"
// @Success      201   {object}  signupResponse
// @Failure      400   {object}  messageResponse
// @Failure      409   {object}  messageResponse
// @Failure      500   {object}  messageResponse
// @Router       /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		metrics.SignupsTotal.WithLabelValues("invalid").Inc()
		return invalidPayload()
	}

	user, err := h.authService.Signup(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		metrics.SignupsTotal.WithLabelValues(resultLabel(err, "conflict")).Inc()
		return err
	}

	metrics.SignupsTotal.WithLabelValues("created").Inc()
	return c.JSON(http.StatusCreated, signupResponse{Message: "User created", User: user})
}

// Login authenticates a user and returns a JWT token.
//
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Username and password"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  messageResponse
// @Failure      401   {object}  messageResponse
// @Failure      500   {object}  messageResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		return invalidPayload()
	}

	token, user, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(resultLabel(err, "invalid_credentials")).Inc()
		return err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, loginResponse{Token: token, User: user})
}

// Logout acknowledges a logout. Tokens are stateless; clients drop them.
//
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Success      200   {object}  messageResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: h.authService.Logout(c.Request().Context())})
}

func invalidPayload() error {
	return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
}

// resultLabel classifies err for the signup/login counters. rejected is the
// label used for conflict or bad-credential outcomes.
func resultLabel(err error, rejected string) string {
	var de *domain.Error
	if !errors.As(err, &de) {
		return "error"
	}
	switch de.Kind {
	case domain.KindValidation:
		return "invalid"
	case domain.KindConflict, domain.KindAuth:
		return rejected
	default:
		return "error"
	}
}
