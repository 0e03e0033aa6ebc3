// Package memory provides an in-process credential store for local
// development and tests. Data is lost on restart.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/aicmo/auth-service/internal/core/domain"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]domain.User)}
}

// Create inserts user under a single lock, so the uniqueness check and the
// insert cannot interleave with another Create.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; exists {
		return nil, domain.ErrUserExists
	}

	created := *user
	created.ID = uuid.NewString()
	r.users[created.Username] = created
	return &created, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

// Ping satisfies the readiness check; the store is always reachable.
func (r *UserRepository) Ping(context.Context) error { return nil }
