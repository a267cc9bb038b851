package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnavailable signals that the backing store could not be reached.
// Callers treat it as "proceed without cache": read through to the source
// and skip invalidation. It must never fail a request.
var ErrUnavailable = errors.New("cache unavailable")

// Skip wraps err so a GetOrCreate factory can short-circuit without
// writing anything to the cache. Used for negative single-entity lookups
// so a not-found is never cached; GetOrCreate returns the wrapped err.
func Skip(err error) error { return skipError{err} }

type skipError struct{ err error }

func (s skipError) Error() string { return "uncached: " + s.err.Error() }
func (s skipError) Unwrap() error { return s.err }

// Cache is the minimal contract the aggregator and coordinator need.
// Values are JSON-serialized by implementations; dest in Get/GetOrCreate
// must be a pointer.
type Cache interface {
	// GetOrCreate returns the cached value if present and unexpired,
	// otherwise invokes factory, stores the result with the given TTL and
	// returns it. Concurrent misses for the same key may each invoke the
	// factory; the short TTLs keep the redundant work bounded.
	GetOrCreate(ctx context.Context, key string, dest any, ttl time.Duration, factory func(ctx context.Context) (any, error)) error

	// Get reads a single key. Returns (false, nil) on a miss.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set writes unconditionally.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Remove deletes a single entry; a missing key is a no-op.
	Remove(ctx context.Context, key string) error

	// RemoveByPrefix deletes every entry whose key starts with prefix. The
	// scan is not transactional with concurrent writers: a key written
	// mid-scan may or may not be removed.
	RemoveByPrefix(ctx context.Context, prefix string) error
}

// keyClass buckets keys for hit/miss metrics. Prefix order matters: the
// geo keys share the bare status key's prefix.
func keyClass(key string) string {
	switch {
	case strings.HasPrefix(key, KeyStatusGeoPrefix):
		return "status_geo"
	case strings.HasPrefix(key, KeyStatus):
		return "status"
	case strings.HasPrefix(key, "parking:location:"):
		return "location"
	case strings.HasPrefix(key, "parking:route:"):
		return "route"
	case strings.HasPrefix(key, KeySpotPrefix):
		return "spot"
	default:
		return "other"
	}
}
