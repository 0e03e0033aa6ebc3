package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/aicmo/auth-service/internal/api/handler"
	"github.com/aicmo/auth-service/internal/core/domain"
	"github.com/aicmo/auth-service/internal/core/service"
	"github.com/aicmo/auth-service/internal/infrastructure/db/memory"
	"github.com/aicmo/auth-service/internal/infrastructure/security"
)

const testSecret = "test-secret-key"

type testServer struct {
	e      *echo.Echo
	tokens *security.JWTManager
	repo   *memory.UserRepository
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithLimiter(t, nil)
}

func newTestServerWithLimiter(t *testing.T, limiter *countingLimiter, opts ...func(*Deps)) *testServer {
	t.Helper()

	repo := memory.NewUserRepository()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	tokens := security.NewJWTManager(testSecret, time.Hour)
	svc := service.NewAuthService(repo, hasher, tokens, time.Second, zerolog.Nop())

	if err := service.EnsureAdmin(context.Background(), repo, hasher, "admin", "admin4", zerolog.Nop()); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	deps := Deps{
		AuthService: svc,
		Verifier:    tokens,
		Checks:      map[string]handler.DependencyCheck{"store": repo.Ping},
		Log:         zerolog.Nop(),
	}
	if limiter != nil {
		deps.Limiter = limiter
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e := NewRouter(deps)
	return &testServer{e: e, tokens: tokens, repo: repo}
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// loginFrom sends a failing login from remoteAddr carrying forwardedFor.
func (s *testServer) loginFrom(remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"wrong"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/login", `{"username":"`+username+`","password":"`+password+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, rec.Code, rec.Body.String())
	}
	return body(t, rec)["token"].(string)
}

func body(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return resp
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, code int, message string) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, rec.Code, rec.Body.String())
	}
	if got := body(t, rec)["message"]; got != message {
		t.Fatalf("expected message %q, got %q", message, got)
	}
}

func TestSignup(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/auth/signup", `{"username":"testuser","password":"password123"}`, nil)
	expect(t, rec, http.StatusCreated, "User created")

	user := body(t, rec)["user"].(map[string]any)
	if user["username"] != "testuser" || user["role"] != "normal" || user["id"] == "" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if _, ok := user["passwordHash"]; ok {
		t.Fatalf("password hash leaked: %+v", user)
	}

	stored, err := s.repo.FindByUsername(context.Background(), "testuser")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.PasswordHash == "password123" || len(stored.PasswordHash) != 60 {
		t.Fatalf("expected bcrypt hash, got %q", stored.PasswordHash)
	}
}

func TestSignup_Validation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"missing username", `{"password":"password123"}`, "username and password required"},
		{"missing password", `{"username":"testuser"}`, "username and password required"},
		{"empty body", ``, "username and password required"},
		{"short username", `{"username":"ab","password":"password123"}`, "Username must be at least 3 characters"},
		{"short password", `{"username":"testuser","password":"12345"}`, "Password must be at least 6 characters"},
		{"malformed json", `{"username":`, "invalid payload"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/auth/signup", tc.body, nil)
			expect(t, rec, http.StatusBadRequest, tc.message)
		})
	}
}

func TestSignup_Duplicate(t *testing.T) {
	s := newTestServer(t)

	first := s.do(http.MethodPost, "/api/auth/signup", `{"username":"testuser","password":"password123"}`, nil)
	expect(t, first, http.StatusCreated, "User created")

	second := s.do(http.MethodPost, "/api/auth/signup", `{"username":"testuser","password":"password456"}`, nil)
	expect(t, second, http.StatusConflict, "username already exists")
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	signup := s.do(http.MethodPost, "/api/auth/signup", `{"username":"testuser","password":"password123"}`, nil)
	created := body(t, signup)["user"].(map[string]any)

	rec := s.do(http.MethodPost, "/api/auth/login", `{"username":"testuser","password":"password123"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := body(t, rec)
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatalf("expected token")
	}
	user := resp["user"].(map[string]any)
	if user["username"] != "testuser" || user["role"] != "normal" || user["id"] != created["id"] {
		t.Fatalf("unexpected user: %+v", user)
	}

	identity, err := s.tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.ID != created["id"] || identity.Username != "testuser" || string(identity.Role) != "normal" {
		t.Fatalf("token identity mismatch: %+v", identity)
	}
}

func TestLogin_Failures(t *testing.T) {
	s := newTestServer(t)
	_ = s.do(http.MethodPost, "/api/auth/signup", `{"username":"testuser","password":"password123"}`, nil)

	expect(t, s.do(http.MethodPost, "/api/auth/login", `{"password":"password123"}`, nil),
		http.StatusBadRequest, "username and password required")
	expect(t, s.do(http.MethodPost, "/api/auth/login", `{"username":"testuser"}`, nil),
		http.StatusBadRequest, "username and password required")

	unknown := s.do(http.MethodPost, "/api/auth/login", `{"username":"nonexistent","password":"password123"}`, nil)
	wrong := s.do(http.MethodPost, "/api/auth/login", `{"username":"testuser","password":"wrongpassword"}`, nil)

	expect(t, unknown, http.StatusUnauthorized, "Invalid credentials")
	expect(t, wrong, http.StatusUnauthorized, "Invalid credentials")
	if unknown.Body.String() != wrong.Body.String() {
		t.Fatalf("responses differ: %q vs %q", unknown.Body.String(), wrong.Body.String())
	}
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	expect(t, s.do(http.MethodPost, "/api/auth/logout", "", nil), http.StatusOK, "Logged out successfully")
}

func TestAdminRoute(t *testing.T) {
	s := newTestServer(t)
	_ = s.do(http.MethodPost, "/api/auth/signup", `{"username":"testuser","password":"password123"}`, nil)
	normalToken := s.login(t, "testuser", "password123")
	adminToken := s.login(t, "admin", "admin4")

	expect(t, s.do(http.MethodGet, "/api/admin", "", nil),
		http.StatusUnauthorized, "Unauthorized")
	expect(t, s.do(http.MethodGet, "/api/admin", "", map[string]string{"Authorization": "InvalidFormat token"}),
		http.StatusUnauthorized, "Unauthorized")
	expect(t, s.do(http.MethodGet, "/api/admin", "", map[string]string{"Authorization": "Bearer invalid-token"}),
		http.StatusForbidden, "Invalid or expired token")

	expired, _ := s.tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }).
		Issue(mustVerify(t, s.tokens, adminToken))
	expect(t, s.do(http.MethodGet, "/api/admin", "", map[string]string{"Authorization": "Bearer " + expired}),
		http.StatusForbidden, "Invalid or expired token")

	forbidden := s.do(http.MethodGet, "/api/admin", "", map[string]string{"Authorization": "Bearer " + normalToken})
	if forbidden.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for normal user, got %d", forbidden.Code)
	}
	if msg, _ := body(t, forbidden)["message"].(string); !strings.Contains(msg, "Forbidden") {
		t.Fatalf("expected Forbidden message, got %q", msg)
	}

	allowed := s.do(http.MethodGet, "/api/admin", "", map[string]string{"Authorization": "Bearer " + adminToken})
	expect(t, allowed, http.StatusOK, "Welcome admin panel")
	user := body(t, allowed)["user"].(map[string]any)
	if user["username"] != "admin" || user["role"] != "admin" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func mustVerify(t *testing.T, tokens *security.JWTManager, token string) domain.Identity {
	t.Helper()
	identity, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return identity
}

func TestOperationalRoutes(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(http.MethodGet, "/", "", nil); rec.Code != http.StatusOK || rec.Body.String() != "auth-service running" {
		t.Fatalf("unexpected root response: %d %q", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health/ready, got %d", rec.Code)
	}

	_ = s.do(http.MethodPost, "/api/auth/logout", "", nil)
	rec := s.do(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("expected http metrics, got %d", rec.Code)
	}

	expect(t, s.do(http.MethodGet, "/api/nope", "", nil), http.StatusNotFound, "Not Found")
}

// countingLimiter allows max attempts per scope and subject.
type countingLimiter struct {
	mu   sync.Mutex
	max  int
	seen map[string]int
	err  error
}

func (l *countingLimiter) Allow(_ context.Context, scope, subject string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := scope + ":" + subject
	l.seen[key]++
	return l.seen[key] <= l.max, nil
}

func TestLogin_RateLimited(t *testing.T) {
	s := newTestServerWithLimiter(t, &countingLimiter{max: 2, seen: map[string]int{}})

	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"wrong"}`, nil)
		expect(t, rec, http.StatusUnauthorized, "Invalid credentials")
	}

	rec := s.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"admin4"}`, nil)
	expect(t, rec, http.StatusTooManyRequests, domain.ErrTooManyAttempts.Message)

	// Scopes are counted independently.
	rec = s.do(http.MethodPost, "/api/auth/signup", `{"username":"testuser","password":"password123"}`, nil)
	expect(t, rec, http.StatusCreated, "User created")
}

func TestLogin_LimiterFailureAllowsRequest(t *testing.T) {
	s := newTestServerWithLimiter(t, &countingLimiter{err: errors.New("redis down")})

	if token := s.login(t, "admin", "admin4"); token == "" {
		t.Fatalf("expected token")
	}
}

func TestLogin_RateLimitIgnoresForwardedFor(t *testing.T) {
	s := newTestServerWithLimiter(t, &countingLimiter{max: 2, seen: map[string]int{}})

	var limited bool
	for i := 0; i < 10; i++ {
		if s.loginFrom("203.0.113.7:4711", fmt.Sprintf("10.0.0.%d", i)).Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Fatal("rotating X-Forwarded-For must not reset the attempt budget")
	}
}

func TestLogin_RateLimitTrustsProxyWhenConfigured(t *testing.T) {
	limiter := &countingLimiter{max: 2, seen: map[string]int{}}
	s := newTestServerWithLimiter(t, limiter, func(d *Deps) { d.TrustProxy = true })

	for i := 0; i < 3; i++ {
		expect(t, s.loginFrom("127.0.0.1:4711", fmt.Sprintf("10.0.0.%d", i)), http.StatusUnauthorized, "Invalid credentials")
	}
	if len(limiter.seen) != 3 {
		t.Fatalf("expected one budget per forwarded client, got %v", limiter.seen)
	}
}
