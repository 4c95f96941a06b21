package session

import (
	"context"
	"errors"
	"fmt"
)

// User is the account returned by the login and register endpoints.
type User struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	ServingsDefault int    `json:"servings_default,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type authResponse struct {
	Success bool `json:"success"`
	Data    struct {
		User   User   `json:"user"`
		Tokens Tokens `json:"tokens"`
	} `json:"data"`
}

// Login authenticates with email and password and starts a session.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/auth/login", loginRequest{Email: email, Password: password})
}

// Register creates an account and starts a session for it.
func (c *Client) Register(ctx context.Context, email, password, name string) (*User, error) {
	return c.authenticate(ctx, "/auth/register", registerRequest{Email: email, Password: password, Name: name})
}

func (c *Client) authenticate(ctx context.Context, endpoint string, body any) (*User, error) {
	var resp authResponse
	if err := c.Post(ctx, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Tokens.AccessToken == "" {
		return nil, errors.New("auth response did not contain an access token")
	}

	c.mu.Lock()
	c.accessToken = resp.Data.Tokens.AccessToken
	c.refreshToken = resp.Data.Tokens.RefreshToken
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, resp.Data.Tokens); err != nil {
			return &resp.Data.User, fmt.Errorf("logged in but failed to persist tokens: %w", err)
		}
	}
	return &resp.Data.User, nil
}

// Logout notifies the backend on a best-effort basis and always clears the
// local session.
func (c *Client) Logout(ctx context.Context) error {
	if c.AccessToken() != "" {
		if err := c.Post(ctx, "/auth/logout", nil, nil); err != nil {
			logf("logout request failed, clearing local session anyway: %v", err)
		}
	}

	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear stored tokens: %w", err)
		}
	}
	return nil
}
