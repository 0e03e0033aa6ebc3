package ports

import (
	"context"

	"github.com/aicmo/auth-service/internal/core/domain"
)

// UserRepository defines the persistence operations of the credential store.
//
// Create must enforce username uniqueness atomically and return
// domain.ErrUserExists when it loses; FindByUsername returns
// domain.ErrUserNotFound when no record matches.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
}
