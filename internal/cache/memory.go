package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/example/parking-api/internal/observability"
)

// MemoryCache is the in-process implementation used in mock mode and in
// tests. Prefix removal is a literal prefix comparison over the key set.
type MemoryCache struct {
	mu         sync.RWMutex
	store      map[string]memEntry
	defaultTTL time.Duration
}

type memEntry struct {
	raw     []byte
	expires time.Time
}

func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	return &MemoryCache{store: make(map[string]memEntry), defaultTTL: defaultTTL}
}

func (m *MemoryCache) GetOrCreate(ctx context.Context, key string, dest any, ttl time.Duration, factory func(ctx context.Context) (any, error)) error {
	if hit, err := m.Get(ctx, key, dest); err == nil && hit {
		observability.CacheHits.WithLabelValues(keyClass(key)).Inc()
		return nil
	}
	observability.CacheMisses.WithLabelValues(keyClass(key)).Inc()
	v, err := factory(ctx)
	if err != nil {
		var skip skipError
		if errors.As(err, &skip) {
			return skip.err
		}
		return err
	}
	if err := m.Set(ctx, key, v, ttl); err != nil {
		return err
	}
	// Decode from the factory value, not the map: a concurrent Remove may
	// already have dropped the entry, and an invalidation must never fail
	// the read that raced it.
	return reencode(v, dest)
}

func (m *MemoryCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	m.mu.RLock()
	e, ok := m.store[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(e.expires) {
		m.mu.Lock()
		delete(m.store, key)
		m.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(e.raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.store[key] = memEntry{raw: b, expires: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.store, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) RemoveByPrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return errors.New("prefix must not be empty")
	}
	m.mu.Lock()
	for k := range m.store {
		if strings.HasPrefix(k, prefix) {
			delete(m.store, k)
		}
	}
	m.mu.Unlock()
	return nil
}

// Len reports the number of live entries; test helper.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}
