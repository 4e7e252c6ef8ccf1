package service

import (
	"context"
	"fmt"
	"time"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/pkg/cache"
)

const credentialKeyPrefix = "onboarding:credentials:"

// CredentialStore keeps the upstream bearer token of each session outside
// the draft store so it never lands next to form values
type CredentialStore struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewCredentialStore(c cache.Cache, ttl time.Duration) *CredentialStore {
	return &CredentialStore{cache: c, ttl: ttl}
}

type storedCredentials struct {
	AccessToken string `json:"access_token"`
}

func (s *CredentialStore) Save(ctx context.Context, sessionID, token string) error {
	if err := s.cache.Set(ctx, credentialKeyPrefix+sessionID, storedCredentials{AccessToken: token}, s.ttl); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// For binds the store to one session
func (s *CredentialStore) For(sessionID string) onboarding.Credentials {
	return &sessionCredentials{store: s, key: credentialKeyPrefix + sessionID}
}

type sessionCredentials struct {
	store *CredentialStore
	key   string
}

func (c *sessionCredentials) AccessToken(ctx context.Context) (string, error) {
	var stored storedCredentials
	found, err := c.store.cache.Get(ctx, c.key, &stored)
	if err != nil {
		return "", fmt.Errorf("load credentials: %w", err)
	}
	if !found || stored.AccessToken == "" {
		return "", onboarding.ErrAuthRequired
	}
	return stored.AccessToken, nil
}

func (c *sessionCredentials) Clear(ctx context.Context) error {
	return c.store.cache.Delete(ctx, c.key)
}
