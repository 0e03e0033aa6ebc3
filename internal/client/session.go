package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aicmo/auth-service/internal/core/domain"
)

// ErrNotLoggedIn is returned by operations that need a stored token.
var ErrNotLoggedIn = errors.New("not logged in")

// Session is the persisted token and user pair.
type Session struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

// SessionStore persists a session between runs.
type SessionStore interface {
	// Load returns nil when nothing is stored.
	Load() (*Session, error)
	Save(Session) error
	Clear() error
}

// FileStore keeps the session as a JSON file readable only by its owner.
type FileStore struct {
	Path string
}

func (f FileStore) Load() (*Session, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Token == "" {
		return nil, nil
	}
	return &s, nil
}

func (f FileStore) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(f.Path, raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (f FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// API is the subset of Client the session manager drives.
type API interface {
	Signup(ctx context.Context, username, password string) (domain.Identity, error)
	Login(ctx context.Context, username, password string) (LoginResult, error)
	Logout(ctx context.Context) (string, error)
	Admin(ctx context.Context, token string) (AdminResult, error)
}

// SessionManager tracks whether the local user is logged in.
type SessionManager struct {
	api   API
	store SessionStore
	log   zerolog.Logger

	mu      sync.RWMutex
	session *Session
}

// NewSessionManager restores any stored session without contacting the
// server, so a stale token still reads as logged in until a call fails.
// An unreadable store starts logged out.
func NewSessionManager(api API, store SessionStore, log zerolog.Logger) *SessionManager {
	m := &SessionManager{api: api, store: store, log: log}

	s, err := store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("discarding unreadable session")
		return m
	}
	m.session = s
	return m
}

// Signup registers a user. It does not log in. Like Login, it trims both
// fields before sending them.
func (m *SessionManager) Signup(ctx context.Context, username, password string) (domain.Identity, error) {
	return m.api.Signup(ctx, strings.TrimSpace(username), strings.TrimSpace(password))
}

// Login authenticates and persists the returned token and user.
func (m *SessionManager) Login(ctx context.Context, username, password string) (domain.Identity, error) {
	res, err := m.api.Login(ctx, strings.TrimSpace(username), strings.TrimSpace(password))
	if err != nil {
		return domain.Identity{}, err
	}

	s := Session{Token: res.Token, User: res.User}
	if err := m.store.Save(s); err != nil {
		return domain.Identity{}, err
	}

	m.mu.Lock()
	m.session = &s
	m.mu.Unlock()
	return res.User, nil
}

// Logout notifies the server and always clears the local session. A server
// failure is only logged.
func (m *SessionManager) Logout(ctx context.Context) error {
	if _, err := m.api.Logout(ctx); err != nil {
		m.log.Warn().Err(err).Msg("logout request failed, clearing session anyway")
	}

	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	return m.store.Clear()
}

func (m *SessionManager) LoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil
}

// User returns the logged-in identity and whether there is one.
func (m *SessionManager) User() (domain.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return domain.Identity{}, false
	}
	return m.session.User, true
}

// Role is empty when logged out.
func (m *SessionManager) Role() domain.Role {
	u, _ := m.User()
	return u.Role
}

// IsAdmin reports whether the role-gated admin entry should be offered.
func (m *SessionManager) IsAdmin() bool {
	return m.Role() == domain.RoleAdmin
}

// Admin calls the role-gated route with the stored token.
func (m *SessionManager) Admin(ctx context.Context) (AdminResult, error) {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()
	if s == nil {
		return AdminResult{}, ErrNotLoggedIn
	}
	return m.api.Admin(ctx, s.Token)
}
