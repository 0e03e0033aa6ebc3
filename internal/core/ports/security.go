package ports

import "github.com/aicmo/auth-service/internal/core/domain"

// PasswordHasher produces and checks one-way salted password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil when password matches hash.
	Compare(hash, password string) error
}

// TokenIssuer mints signed bearer tokens for an identity.
type TokenIssuer interface {
	Issue(id domain.Identity) (string, error)
}

// TokenVerifier checks signature and expiry and returns the embedded identity.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}
