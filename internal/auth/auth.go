// Package auth drives the login and register flows: client-side
// validation, the backend call through the gateway, and the session
// transition on success.
package auth

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"github.com/basket/taskdeck/internal/gateway"
	"github.com/basket/taskdeck/internal/session"
)

const minPasswordLen = 8

// response is the backend's auth envelope, shared by login and register.
type response struct {
	Success bool              `json:"success"`
	User    *session.Identity `json:"user,omitempty"`
	Token   string            `json:"token,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Client performs auth operations.
type Client struct {
	gw       *gateway.Client
	sessions *session.Store
}

// NewClient builds an auth client over the gateway and session store.
func NewClient(gw *gateway.Client, sessions *session.Store) *Client {
	return &Client{gw: gw, sessions: sessions}
}

// Login authenticates against POST /auth/login and establishes the
// session on success.
func (c *Client) Login(ctx context.Context, email, password string) (session.Identity, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return session.Identity{}, err
	}
	if password == "" {
		return session.Identity{}, gateway.ValidationFailure("password", "password is required")
	}

	body := map[string]string{"email": email, "password": password}
	return c.finish(ctx, "/auth/login", body)
}

// Register creates an account via POST /auth/register and establishes the
// session on success. confirm must match password; the check happens
// before any network call.
func (c *Client) Register(ctx context.Context, email, password, confirm, name string) (session.Identity, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		return session.Identity{}, err
	}
	if name == "" {
		return session.Identity{}, gateway.ValidationFailure("name", "name is required")
	}
	if len(password) < minPasswordLen {
		return session.Identity{}, gateway.ValidationFailure("password", "password must be at least 8 characters")
	}
	if password != confirm {
		return session.Identity{}, gateway.ValidationFailure("confirmPassword", "passwords do not match")
	}

	body := map[string]string{"email": email, "password": password, "name": name}
	return c.finish(ctx, "/auth/register", body)
}

func (c *Client) finish(ctx context.Context, path string, body map[string]string) (session.Identity, error) {
	var resp response
	if err := c.gw.Do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return session.Identity{}, err
	}
	if !resp.Success || resp.Token == "" {
		msg := resp.Error
		if msg == "" {
			msg = "authentication failed"
		}
		return session.Identity{}, gateway.ServerFailure(http.StatusOK, msg)
	}

	identity := session.Identity{}
	if resp.User != nil {
		identity = *resp.User
	}
	// A storage failure here is reported by the session store itself; the
	// in-memory session is active regardless, so the flow succeeds.
	if err := c.sessions.Login(identity, resp.Token); err != nil {
		return identity, nil
	}
	return identity, nil
}

func validateEmail(email string) error {
	if email == "" {
		return gateway.ValidationFailure("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return gateway.ValidationFailure("email", "enter a valid email address")
	}
	return nil
}
