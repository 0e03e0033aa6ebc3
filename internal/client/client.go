// Package client talks to the auth-service HTTP API and keeps the local
// session of a command-line user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aicmo/auth-service/internal/core/domain"
)

const (
	DefaultBaseURL = "http://localhost:5050"
	defaultTimeout = 10 * time.Second
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// LoginResult is the body of a successful login.
type LoginResult struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

// AdminResult is the body of the role-gated admin route.
type AdminResult struct {
	Message string          `json:"message"`
	User    domain.Identity `json:"user"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signupResult struct {
	Message string          `json:"message"`
	User    domain.Identity `json:"user"`
}

type messageResult struct {
	Message string `json:"message"`
}

// Client is a JSON client for the auth routes.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for baseURL. An empty baseURL targets DefaultBaseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) Signup(ctx context.Context, username, password string) (domain.Identity, error) {
	var out signupResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", "", credentials{username, password}, &out, "Signup failed"); err != nil {
		return domain.Identity{}, err
	}
	return out.User, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", credentials{username, password}, &out, "Login failed"); err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context) (string, error) {
	var out messageResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", "", nil, &out, "Logout failed"); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Admin calls GET /api/admin with token as bearer credential.
func (c *Client) Admin(ctx context.Context, token string) (AdminResult, error) {
	var out AdminResult
	if err := c.do(ctx, http.MethodGet, "/api/admin", token, nil, &out, "Request failed"); err != nil {
		return AdminResult{}, err
	}
	return out, nil
}

// do sends in as JSON and decodes a 2xx body into out. Any other status
// becomes an *APIError carrying the server message, or fallback when the
// body has none.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any, fallback string) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg messageResult
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		if msg.Message == "" {
			msg.Message = fallback
		}
		return &APIError{Status: resp.StatusCode, Message: msg.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
