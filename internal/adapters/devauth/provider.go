package devauth

// Package devauth provides a config-driven SSO provider for local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/edusuite/portal/internal/ports"
)

// Config controls the dev SSO provider behavior.
type Config struct {
	Identifier string
	FirstName  string
	LastName   string
}

// Provider implements ports.SSOProvider for local development. It
// short-circuits the SSO flow by redirecting back to our own callback with
// locally generated state and nonce; Exchange ignores the code and returns
// the configured identity. The identifier still goes through directory
// verification like any real sign-in.
type Provider struct {
	identity ports.SSOIdentity
}

// NewProvider constructs a dev SSO provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Identifier == "" {
		return nil, errors.New("dev auth: Identifier is required")
	}
	return &Provider{
		identity: ports.SSOIdentity{
			Identifier: cfg.Identifier,
			FirstName:  cfg.FirstName,
			LastName:   cfg.LastName,
		},
	}, nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	// The callback handler expects GET /accounts/sso/callback?code=...&state=...
	authURL := "/accounts/sso/callback?code=dev&state=" + state
	return authURL, state, nonce, nil
}

// Exchange ignores the provided code/state/nonce (validation handled by the
// callback handler) and returns the dev identity.
func (p *Provider) Exchange(_ context.Context, _ ports.ExchangeInput) (ports.SSOIdentity, error) {
	return p.identity, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}

var _ ports.SSOProvider = (*Provider)(nil)
