package repository

import (
	"context"
	"sync"

	"onboarding-backend/internal/domains/onboarding"
)

// memoryDraftStore keeps drafts in process; used in development and tests
type memoryDraftStore struct {
	mu     sync.RWMutex
	drafts map[string]map[string][]byte
}

func NewMemoryDraftStore() onboarding.DraftStore {
	return &memoryDraftStore{drafts: make(map[string]map[string][]byte)}
}

func (s *memoryDraftStore) Get(ctx context.Context, ns, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.drafts[ns][key]
	if !ok {
		return nil, onboarding.ErrDraftNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *memoryDraftStore) Put(ctx context.Context, ns, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drafts[ns] == nil {
		s.drafts[ns] = make(map[string][]byte)
	}
	s.drafts[ns][key] = append([]byte(nil), value...)
	return nil
}

func (s *memoryDraftStore) Delete(ctx context.Context, ns string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.drafts[ns], k)
	}
	if len(s.drafts[ns]) == 0 {
		delete(s.drafts, ns)
	}
	return nil
}
