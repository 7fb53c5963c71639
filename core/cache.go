package core

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte oriented key/value store with per-key expiry.
type Cache interface {
	// Get returns ErrCacheMiss when the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// cache keys
const (
	CacheKeyAdminDashboard      = "dashboard:admin"
	CacheKeyInstructorDashboard = "dashboard:instructor"
	CacheKeyRevokedTokenPrefix  = "auth:revoked:"
)
