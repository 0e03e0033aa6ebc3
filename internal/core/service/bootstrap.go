package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aicmo/auth-service/internal/core/domain"
	"github.com/aicmo/auth-service/internal/core/ports"
)

// EnsureAdmin creates the initial admin account unless a user with that
// username already exists. Safe to run on every start. Callers bound it with
// a deadline; hitting it yields ErrStoreUnavailable.
func EnsureAdmin(ctx context.Context, repo ports.UserRepository, hasher ports.PasswordHasher, username, password string, log zerolog.Logger) error {
	if _, err := repo.FindByUsername(ctx, username); err == nil {
		log.Info().Str("username", username).Msg("admin already exists")
		return nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("ensure admin: %w", storeError("find user", err))
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	created, err := repo.Create(ctx, &domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		// Another instance won the race.
		if errors.Is(err, domain.ErrUserExists) {
			log.Info().Str("username", username).Msg("admin already exists")
			return nil
		}
		return fmt.Errorf("ensure admin: %w", storeError("create user", err))
	}

	log.Info().Str("user_id", created.ID).Str("username", username).Msg("admin user created")
	return nil
}
