package cache

import (
	"context"
	"time"
)

// Cache is the key/value contract shared by the redis and in-memory backends.
// Values are JSON encoded.
type Cache interface {
	// Get unmarshals the value of key into dest.
	// found is false on a miss and dest is left untouched.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value under key; ttl 0 keeps it until deleted
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Delete(ctx context.Context, keys ...string) error

	Exists(ctx context.Context, key string) (bool, error)

	Ping(ctx context.Context) error
}
