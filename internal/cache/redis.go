package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/parking-api/internal/observability"
)

// RedisCache implements Cache on a single Redis instance. Prefix removal
// relies on server-side SCAN, so any backend used here must support key
// enumeration.
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

func NewRedisCache(addr, password string, defaultTTL time.Duration) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisCache{client: c, defaultTTL: defaultTTL}
}

func (r *RedisCache) GetOrCreate(ctx context.Context, key string, dest any, ttl time.Duration, factory func(ctx context.Context) (any, error)) error {
	hit, err := r.Get(ctx, key, dest)
	if err == nil && hit {
		observability.CacheHits.WithLabelValues(keyClass(key)).Inc()
		return nil
	}
	observability.CacheMisses.WithLabelValues(keyClass(key)).Inc()
	// On a cache error we still serve the request from the source; the
	// caller only sees factory failures.
	v, ferr := factory(ctx)
	if ferr != nil {
		var skip skipError
		if errors.As(ferr, &skip) {
			return skip.err
		}
		return ferr
	}
	if err == nil {
		if serr := r.Set(ctx, key, v, ttl); serr != nil && !errors.Is(serr, ErrUnavailable) {
			return serr
		}
	}
	return reencode(v, dest)
}

func (r *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *RedisCache) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *RedisCache) RemoveByPrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return errors.New("prefix must not be empty")
	}
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// reencode copies the factory result into dest through JSON, so cache hits
// and misses hand the caller identically-shaped values.
func reencode(v, dest any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}
