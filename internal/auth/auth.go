// Package auth keeps the backend bearer token.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SourceConfig = "config" // config file or TADA_TOKEN
	SourceFile   = "file"
)

var ErrNotLoggedIn = errors.New("not logged in")

type TokenInfo struct {
	Token     string     `json:"token"`
	Source    string     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"` // optional (JWT exp or server-provided)
}

// Credentials is the on-disk token file, readable only by its owner.
type Credentials struct {
	path     string
	override string
}

// New keeps credentials at path. A non-empty override (the configured
// token) wins over the file and is never written or deleted.
func New(path, override string) *Credentials {
	return &Credentials{path: path, override: stripBearer(strings.TrimSpace(override))}
}

func (c *Credentials) Path() string { return c.path }

// Get returns the active token, or ErrNotLoggedIn.
func (c *Credentials) Get() (*TokenInfo, error) {
	if c.override != "" {
		ti := &TokenInfo{Token: c.override, Source: SourceConfig}
		ti.ExpiresAt = expiry(ti.Token)
		return ti, nil
	}

	b, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var ti TokenInfo
	if err := json.Unmarshal(b, &ti); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	ti.Token = stripBearer(ti.Token)
	if ti.Token == "" {
		return nil, ErrNotLoggedIn
	}
	ti.Source = SourceFile
	return &ti, nil
}

// Token is Get reduced to the bearer string; "" when not logged in.
func (c *Credentials) Token() (string, error) {
	ti, err := c.Get()
	if errors.Is(err, ErrNotLoggedIn) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ti.Token, nil
}

// Set saves token. When expires is nil and the token is a JWT with an exp
// claim, that is recorded instead.
func (c *Credentials) Set(token string, expires *time.Time) error {
	token = stripBearer(strings.TrimSpace(token))
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if expires == nil {
		expires = expiry(token)
	}
	ti := TokenInfo{
		Token:     token,
		Source:    SourceFile,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expires,
	}
	b, err := json.MarshalIndent(ti, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(c.path, b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Delete removes the file. A missing file is not an error.
func (c *Credentials) Delete() error {
	if err := os.Remove(c.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// Overridden reports whether the token comes from configuration.
func (c *Credentials) Overridden() bool { return c.override != "" }

// Claims decodes a JWT payload without verifying the signature. Opaque
// tokens return an error.
func Claims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("not a JWT: %w", err)
	}
	return claims, nil
}

func expiry(token string) *time.Time {
	claims, err := Claims(token)
	if err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time.UTC()
	return &t
}

// stripBearer drops a leading "Bearer" scheme; a bare scheme leaves "".
func stripBearer(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	switch {
	case lower == "bearer":
		return ""
	case strings.HasPrefix(lower, "bearer "), strings.HasPrefix(lower, "bearer\t"):
		return strings.TrimSpace(s[len("bearer"):])
	}
	return s
}
