package ports

import (
	"context"

	"github.com/aicmo/auth-service/internal/core/domain"
)

type AuthService interface {
	Signup(ctx context.Context, username, password string) (domain.Identity, error)
	Login(ctx context.Context, username, password string) (string, domain.Identity, error)
	Logout(ctx context.Context) string
}
