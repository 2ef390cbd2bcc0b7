package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"profile-service/pkg/platform/sentinel"
)

// Backend stores serialized snapshots. Get returns sentinel.ErrCacheMiss for
// absent or expired keys; any other error is a backend failure and callers
// treat it as a miss.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryBackend is a process-local TTL map.
type MemoryBackend struct {
	c *gocache.Cache
}

// NewMemoryBackend builds a memory backend whose janitor sweeps expired keys
// every cleanupInterval. Expiry is also checked on every Get.
func NewMemoryBackend(cleanupInterval time.Duration) *MemoryBackend {
	return &MemoryBackend{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, sentinel.ErrCacheMiss
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, sentinel.ErrCacheMiss
	}
	return b, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}

// Len counts unexpired keys.
func (m *MemoryBackend) Len() int {
	return m.c.ItemCount()
}
