package redis

// Package redis provides Redis-based adapters for the portal.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
	"github.com/edusuite/portal/internal/ports"
)

// defaultRetention is storage housekeeping only: session expiry policy lives
// in the session manager, but abandoned credentials should not accumulate in
// Redis forever.
const defaultRetention = 30 * 24 * time.Hour

// CredentialStore persists browser credential records in Redis, keyed by the
// opaque credential key held in the browser cookie. It stores and returns
// records verbatim; it has no expiry or validation logic of its own.
type CredentialStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewCredentialStore creates a Redis-backed credential store.
func NewCredentialStore(client redis.UniversalClient) *CredentialStore {
	return &CredentialStore{
		client:    client,
		prefix:    "credential:",
		retention: defaultRetention,
	}
}

// NewCredentialStoreWithPrefix creates a credential store with a custom key prefix.
func NewCredentialStoreWithPrefix(client redis.UniversalClient, prefix string) *CredentialStore {
	return &CredentialStore{
		client:    client,
		prefix:    prefix,
		retention: defaultRetention,
	}
}

func (s *CredentialStore) Save(ctx context.Context, key string, cred domainauth.Credential) error {
	if key == "" {
		return errors.New("credential key cannot be empty")
	}
	if cred.Identifier == "" {
		return errors.New("credential identifier cannot be empty")
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	return s.client.Set(ctx, s.prefix+key, data, s.retention).Err()
}

func (s *CredentialStore) Load(ctx context.Context, key string) (domainauth.Credential, error) {
	if key == "" {
		return domainauth.Credential{}, ports.ErrNoCredential
	}

	data, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Credential{}, ports.ErrNoCredential
		}
		return domainauth.Credential{}, fmt.Errorf("redis get: %w", err)
	}

	var cred domainauth.Credential
	if unmarshalErr := json.Unmarshal([]byte(data), &cred); unmarshalErr != nil {
		return domainauth.Credential{}, fmt.Errorf("unmarshal credential: %w", unmarshalErr)
	}

	return cred, nil
}

func (s *CredentialStore) Clear(ctx context.Context, key string) error {
	if key == "" {
		return nil // Nothing to clear
	}
	return s.client.Del(ctx, s.prefix+key).Err()
}

var _ ports.CredentialStore = (*CredentialStore)(nil)
