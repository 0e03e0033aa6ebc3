package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aicmo/auth-service/internal/api/middleware"
	"github.com/aicmo/auth-service/internal/core/domain"
)

// AdminHandler serves the role-gated admin resource.
type AdminHandler struct{}

func NewAdminHandler() *AdminHandler {
	return &AdminHandler{}
}

type adminResponse struct {
	Message string          `json:"message"`
	User    domain.Identity `json:"user"`
}

// Panel greets an authenticated admin.
//
// @Summary      Admin panel
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  adminResponse
// @Failure      401   {object}  messageResponse
// @Failure      403   {object}  messageResponse
// @Router       /admin [get]
func (h *AdminHandler) Panel(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return domain.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, adminResponse{Message: "Welcome admin panel", User: identity})
}
