package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codr1/ChargeEase/internal/models"
)

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone,omitempty"`
	AgreeToTerms    bool   `json:"agreeToTerms"`
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.post(ctx, "/auth/login", req, &resp); err != nil {
		return resp, err
	}
	return resp, c.storeSession(resp)
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.post(ctx, "/auth/signup", req, &resp); err != nil {
		return resp, err
	}
	return resp, c.storeSession(resp)
}

// Logout ends the server session, then clears both stored tokens even when
// the server call failed. The server error is returned.
func (c *Client) Logout(ctx context.Context) error {
	serverErr := c.post(ctx, "/auth/logout", nil, nil)
	clearErr := errors.Join(
		c.storage.Remove(KeyAuthToken),
		c.storage.Remove(KeyRefreshToken),
		c.storage.Remove(KeyUser),
	)
	return errors.Join(serverErr, clearErr)
}

// Refresh swaps the stored refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context) error {
	refresh, err := c.storage.Get(KeyRefreshToken)
	if err != nil {
		return err
	}
	if refresh == "" {
		return errors.New("no refresh token stored")
	}
	var resp models.AuthResponse
	if err := c.post(ctx, "/auth/refresh", map[string]string{"refreshToken": refresh}, &resp); err != nil {
		return err
	}
	return c.storeSession(resp)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.post(ctx, "/auth/forgot-password", map[string]string{"email": email}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.post(ctx, "/auth/reset-password", map[string]string{"token": token, "password": password}, nil)
}

func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.post(ctx, "/auth/verify-email", map[string]string{"token": token}, nil)
}

// CurrentUser returns the user stored at login, or nil when logged out.
func (c *Client) CurrentUser() (*models.User, error) {
	raw, err := c.storage.Get(KeyUser)
	if err != nil || raw == "" {
		return nil, err
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decode stored user: %w", err)
	}
	return &user, nil
}

func (c *Client) Profile(ctx context.Context) (models.User, error) {
	var user models.User
	_, err := c.get(ctx, "/users/profile", nil, &user)
	return user, err
}

func (c *Client) storeSession(resp models.AuthResponse) error {
	if resp.Token == "" {
		return nil
	}
	user, err := json.Marshal(resp.User)
	if err != nil {
		return err
	}
	if err := c.storage.Set(KeyAuthToken, resp.Token); err != nil {
		return err
	}
	if resp.RefreshToken != "" {
		if err := c.storage.Set(KeyRefreshToken, resp.RefreshToken); err != nil {
			return err
		}
	}
	return c.storage.Set(KeyUser, string(user))
}
