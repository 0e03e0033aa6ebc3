package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aicmo/auth-service/internal/core/domain"
)

const defaultTokenTTL = 7 * 24 * time.Hour

// Claims is the JWT payload: the identity plus registered claims.
type Claims struct {
	UserID   string      `json:"id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 tokens. It satisfies both
// ports.TokenIssuer and ports.TokenVerifier.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &JWTManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of m that reads the current time from now.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	clone := *m
	clone.now = now
	return &clone
}

func (m *JWTManager) Issue(id domain.Identity) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:   id.ID,
		Username: id.Username,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *JWTManager) Verify(token string) (domain.Identity, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !tkn.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.Username == "" || !claims.Role.Valid() {
		return domain.Identity{}, fmt.Errorf("%w: incomplete claims", domain.ErrInvalidToken)
	}

	return domain.Identity{ID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}
