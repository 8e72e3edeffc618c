// Package auth stores the bearer token used by restedctl and reads the
// expiry of JWT tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fruitsalade/rested/pkg/rested"
)

// ErrNoExpiry is returned for tokens without an exp claim.
var ErrNoExpiry = errors.New("token has no expiry")

// TokenFile holds a saved authentication token.
type TokenFile struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Server    string    `json:"server"`
	Username  string    `json:"username,omitempty"`
}

// NewTokenFile creates a token file for server. The expiry is taken from
// the token's exp claim when the token is a JWT.
func NewTokenFile(token, server string) *TokenFile {
	tf := &TokenFile{Token: token, Server: server}
	if exp, err := Expiry(token); err == nil {
		tf.ExpiresAt = exp
	}
	return tf
}

// IsExpired returns true if the token has expired (with optional margin).
// Tokens without a known expiry never expire.
func (t *TokenFile) IsExpired(margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// Expiry returns the exp claim of a JWT. The signature is not verified;
// the server does that.
func Expiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Subject returns the sub claim of a JWT, or "" if it has none.
func Subject(token string) string {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	return claims.Subject
}

// TokenFilePath returns the default path for the token file.
func TokenFilePath() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "rested", "token.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "rested", "token.json")
}

// SaveToken writes tf to path.
func SaveToken(path string, tf *TokenFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadToken reads the token file at path.
func LoadToken(path string) (*TokenFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf TokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &tf, nil
}

// DeleteToken removes the token file at path.
func DeleteToken(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Login posts username and password to the login resource of c and returns
// the token from the response's "token" field.
func Login(ctx context.Context, c *rested.Client, path, username, password string) (*TokenFile, error) {
	res, err := c.Resource(path).Fetch(ctx, rested.Request{
		Method: "post",
		Body: map[string]any{
			"username": username,
			"password": password,
		},
		IgnoreMerge:      true,
		IgnoreLocalCache: true,
		IgnoreLocalWrite: true,
	}).Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}

	body, ok := res.Data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected login response %T", res.Data)
	}
	token, _ := body["token"].(string)
	if token == "" {
		return nil, errors.New("login response has no token")
	}

	base, _ := c.BaseURL(0)
	tf := NewTokenFile(token, base)
	tf.Username = username
	if s, ok := body["expires_at"].(string); ok && tf.ExpiresAt.IsZero() {
		if exp, err := time.Parse(time.RFC3339, s); err == nil {
			tf.ExpiresAt = exp
		}
	}
	return tf, nil
}
