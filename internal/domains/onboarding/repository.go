package onboarding

import "context"

// DraftStore persists partially completed wizards as independent keys.
// ns scopes keys to one session; values are JSON documents.
type DraftStore interface {
	// Get returns ErrDraftNotFound when the key was never written
	Get(ctx context.Context, ns, key string) ([]byte, error)

	// Put overwrites a single key, no TTL
	Put(ctx context.Context, ns, key string, value []byte) error

	// Delete removes the given keys; missing keys are not an error
	Delete(ctx context.Context, ns string, keys ...string) error
}
