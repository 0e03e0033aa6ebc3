package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aicmo/auth-service/internal/core/domain"
	"github.com/aicmo/auth-service/internal/core/ports"
)

const (
	defaultStoreTimeout = 5 * time.Second
	logoutMessage       = "Logged out successfully"
)

// AuthService implements signup, login and logout.
type AuthService struct {
	repo         ports.UserRepository
	hasher       ports.PasswordHasher
	tokens       ports.TokenIssuer
	validate     *validator.Validate
	storeTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	repo ports.UserRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenIssuer,
	storeTimeout time.Duration,
	log zerolog.Logger,
) *AuthService {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &AuthService{
		repo:         repo,
		hasher:       hasher,
		tokens:       tokens,
		validate:     newValidator(),
		storeTimeout: storeTimeout,
		now:          time.Now,
		log:          log,
	}
}

// Signup creates a normal user and returns its public view. Surrounding
// whitespace in the username is ignored here and in Login.
func (s *AuthService) Signup(ctx context.Context, username, password string) (domain.Identity, error) {
	username = strings.TrimSpace(username)
	if err := credentialError(s.validate.Struct(signupCredentials{Username: username, Password: password})); err != nil {
		return domain.Identity{}, err
	}

	if err := s.ensureAvailable(ctx, username); err != nil {
		return domain.Identity{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.Identity{}, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	created, err := s.repo.Create(storeCtx, &domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleNormal,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return domain.Identity{}, domain.ErrUserExists
		}
		return domain.Identity{}, storeError("create user", err)
	}

	s.log.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("user created")
	return created.Identity(), nil
}

func (s *AuthService) ensureAvailable(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	_, err := s.repo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return domain.ErrUserExists
	case errors.Is(err, domain.ErrUserNotFound):
		return nil
	default:
		return storeError("find user", err)
	}
}

// Login checks credentials and returns a signed token with the user's public view.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, domain.Identity, error) {
	username = strings.TrimSpace(username)
	if err := credentialError(s.validate.Struct(loginCredentials{Username: username, Password: password})); err != nil {
		return "", domain.Identity{}, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.repo.FindByUsername(storeCtx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.compareDummy(password)
			return "", domain.Identity{}, domain.ErrInvalidCredentials
		}
		return "", domain.Identity{}, storeError("find user", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.log.Debug().Str("username", username).Msg("password mismatch")
		return "", domain.Identity{}, domain.ErrInvalidCredentials
	}

	identity := user.Identity()
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return "", domain.Identity{}, err
	}

	s.log.Info().Str("user_id", identity.ID).Str("role", string(identity.Role)).Msg("user logged in")
	return token, identity, nil
}

// Logout only acknowledges: tokens are stateless and stay valid until expiry.
func (s *AuthService) Logout(_ context.Context) string {
	return logoutMessage
}

// compareDummy spends one hash comparison so a missing user costs the same
// as a wrong password.
func (s *AuthService) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("dummy-password-for-timing")
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to prepare dummy hash")
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_ = s.hasher.Compare(s.dummyHash, password)
	}
}

// storeError marks deadline failures as retryable unavailability.
func storeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, domain.ErrStoreUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}
