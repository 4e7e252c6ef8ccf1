package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/pkg/cache"
)

const draftKeyPrefix = "onboarding:draft:"

// cacheDraftStore stores each draft key as its own cache entry without TTL
type cacheDraftStore struct {
	cache cache.Cache
}

func NewCacheDraftStore(c cache.Cache) onboarding.DraftStore {
	return &cacheDraftStore{cache: c}
}

func draftCacheKey(ns, key string) string {
	return fmt.Sprintf("%s%s:%s", draftKeyPrefix, ns, key)
}

func (s *cacheDraftStore) Get(ctx context.Context, ns, key string) ([]byte, error) {
	var raw json.RawMessage
	found, err := s.cache.Get(ctx, draftCacheKey(ns, key), &raw)
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", key, err)
	}
	if !found {
		return nil, onboarding.ErrDraftNotFound
	}
	return raw, nil
}

func (s *cacheDraftStore) Put(ctx context.Context, ns, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("put draft %s: value is not JSON", key)
	}
	if err := s.cache.Set(ctx, draftCacheKey(ns, key), json.RawMessage(value), 0); err != nil {
		return fmt.Errorf("put draft %s: %w", key, err)
	}
	return nil
}

func (s *cacheDraftStore) Delete(ctx context.Context, ns string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	cacheKeys := make([]string, len(keys))
	for i, k := range keys {
		cacheKeys[i] = draftCacheKey(ns, k)
	}
	if err := s.cache.Delete(ctx, cacheKeys...); err != nil {
		return fmt.Errorf("delete drafts: %w", err)
	}
	return nil
}
