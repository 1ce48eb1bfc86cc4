// Package api is the REST client for the HR backend, the portal's external
// collaborator. Every call is independent and fire-and-forget from the
// caller's perspective: no retries, no backoff, no coordination between
// in-flight requests.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client talks to the HR backend over HTTP/JSON.
type Client struct {
	base string
	http *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests, custom
// transports).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient validates the base URL and builds a client with a bounded
// per-request timeout.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api: invalid base URL %q", baseURL)
	}
	c := &Client{
		base: baseURL,
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

// Me fetches the caller's profile and preferences.
func (c *Client) Me(ctx context.Context, token string) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &out)
	return out, err
}

// ChangePasswordOnFirstLogin sets a fresh password for the token's subject.
func (c *Client) ChangePasswordOnFirstLogin(ctx context.Context, token, newPassword string) error {
	return c.do(ctx, http.MethodPut, "/auth/change-password-on-first-login", token, map[string]string{
		"new_password": newPassword,
	}, nil)
}

// ForgotPassword asks the backend to mail a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", "", map[string]string{
		"email": email,
	}, nil)
}

// ResetPassword redeems a reset token for a new password.
func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return c.do(ctx, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token":        resetToken,
		"new_password": newPassword,
	}, nil)
}

// Register creates an employee account.
func (c *Client) Register(ctx context.Context, token string, user CreateUser) error {
	return c.do(ctx, http.MethodPost, "/auth/register", token, user, nil)
}

// ListUsers returns every account, active and inactive.
func (c *Client) ListUsers(ctx context.Context, token string) ([]User, error) {
	var out []User
	err := c.do(ctx, http.MethodGet, "/users", token, nil, &out)
	return out, err
}

// GetUser fetches one account by id.
func (c *Client) GetUser(ctx context.Context, token string, id int) (User, error) {
	var out User
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), token, nil, &out)
	return out, err
}

// UpdateUser applies an administrative edit.
func (c *Client) UpdateUser(ctx context.Context, token string, id int, upd UpdateUser) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), token, upd, nil)
}

// DeleteUser permanently removes an account.
func (c *Client) DeleteUser(ctx context.Context, token string, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), token, nil, nil)
}

// ReactivateUser restores a deactivated account.
func (c *Client) ReactivateUser(ctx context.Context, token string, id int) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/users/reactivate/%d", id), token, struct{}{}, nil)
}

// UpdateProfile edits the caller's own account and preferences.
func (c *Client) UpdateProfile(ctx context.Context, token string, upd UpdateProfile) error {
	return c.do(ctx, http.MethodPut, "/users/me", token, upd, nil)
}

// ListRoles returns the role catalog.
func (c *Client) ListRoles(ctx context.Context, token string) ([]Role, error) {
	var out []Role
	err := c.do(ctx, http.MethodGet, "/roles", token, nil, &out)
	return out, err
}

// CreateRole adds a role.
func (c *Client) CreateRole(ctx context.Context, token, name string) error {
	return c.do(ctx, http.MethodPost, "/roles", token, map[string]string{"name": name}, nil)
}

// UpdateRole renames a role.
func (c *Client) UpdateRole(ctx context.Context, token string, id int, name string) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/roles/%d", id), token, map[string]string{"name": name}, nil)
}

// DeleteRole removes a role.
func (c *Client) DeleteRole(ctx context.Context, token string, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/roles/%d", id), token, nil, nil)
}

// Organization fetches the org profile and SMTP settings.
func (c *Client) Organization(ctx context.Context, token string) (Organization, error) {
	var out Organization
	err := c.do(ctx, http.MethodGet, "/organization", token, nil, &out)
	return out, err
}

// UpdateOrganization saves the org profile and SMTP settings.
func (c *Client) UpdateOrganization(ctx context.Context, token string, org Organization) error {
	return c.do(ctx, http.MethodPut, "/organization", token, org, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		if detail := decodeDetail(resp.Body); detail != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, detail)
		}
		return ErrNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		detail := decodeDetail(resp.Body)
		if detail == "" {
			detail = fmt.Sprintf("request rejected (%d)", resp.StatusCode)
		}
		return &ValidationError{Detail: detail}
	case resp.StatusCode >= 500:
		return fmt.Errorf("api: %s %s: backend returned %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("api: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// decodeDetail reads the FastAPI-style {"detail": "..."} error body.
func decodeDetail(r io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 1<<16)).Decode(&payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Detail)
}
