package embcache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kailas-cloud/answerd/internal/db"
)

// MemoryStore is an in-process cache backend for deployments without a
// dedicated Redis cache. Entries expire per-key via the TTL passed to
// SetWithTTL.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates an in-memory store with the given default TTL.
func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(defaultTTL, 10*time.Minute),
	}
}

// Get implements the cache store contract. Misses map to db.ErrKeyNotFound.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return data, nil
}

// SetWithTTL stores a value with the given expiration.
func (m *MemoryStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.Set(key, value, ttl)
	return nil
}
