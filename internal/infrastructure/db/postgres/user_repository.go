package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aicmo/auth-service/internal/core/domain"
)

const uniqueViolation = "23505"

// UserRepository stores credential records in Postgres. The
// users_username_key constraint enforces username uniqueness.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	created := *user
	created.ID = uuid.NewString()

	args := []any{created.ID, created.Username, created.PasswordHash, string(created.Role), created.CreatedAt}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&created.CreatedAt); err != nil {
		return nil, translate("insert user", err)
	}

	return &created, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, password_hash, role, created_at
		FROM users WHERE username = $1
	`

	user := &domain.User{Username: username}
	var role string
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&user.ID, &user.PasswordHash, &role, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.Role = domain.Role(role)

	return user, nil
}

// translate maps a unique violation to ErrUserExists and wraps anything else.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrUserExists
	}
	return fmt.Errorf("%s: %w", op, err)
}
