package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGetOrCreatePopulatesOnMiss(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	calls := 0
	var got int
	err := c.GetOrCreate(ctx, "k", &got, time.Minute, func(ctx context.Context) (any, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Fatalf("got=%d calls=%d", got, calls)
	}

	// second read must come from the cache
	err = c.GetOrCreate(ctx, "k", &got, time.Minute, func(ctx context.Context) (any, error) {
		calls++
		return 0, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Fatalf("expected cached value, got=%d calls=%d", got, calls)
	}
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	var got string
	hit, err := c.Get(ctx, "k", &got)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Fatal("expected expired entry to be a miss")
	}
}

func TestSkipLeavesNothingCached(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()
	notFound := errors.New("no such lot")

	var got int
	err := c.GetOrCreate(ctx, "k", &got, time.Minute, func(ctx context.Context) (any, error) {
		return nil, Skip(notFound)
	})
	if !errors.Is(err, notFound) {
		t.Fatalf("expected wrapped error back, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected no cache write, have %d entries", c.Len())
	}
}

func TestRemoveByPrefix(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	_ = c.Set(ctx, KeyStatus, 1, time.Minute)
	_ = c.Set(ctx, StatusGeoKey(59.9343, 30.3351, 100), 2, time.Minute)
	_ = c.Set(ctx, StatusGeoKey(59.9600, 30.3200, 500), 3, time.Minute)
	_ = c.Set(ctx, LotKey(1), 4, time.Minute)

	if err := c.RemoveByPrefix(ctx, KeyStatusGeoPrefix); err != nil {
		t.Fatal(err)
	}

	var v int
	if hit, _ := c.Get(ctx, StatusGeoKey(59.9343, 30.3351, 100), &v); hit {
		t.Fatal("geo key survived prefix removal")
	}
	// the bare status key does not share the geo prefix
	if hit, _ := c.Get(ctx, KeyStatus, &v); !hit {
		t.Fatal("bare status key should not be removed by the geo prefix")
	}
	if hit, _ := c.Get(ctx, LotKey(1), &v); !hit {
		t.Fatal("lot key should be untouched")
	}
}

func TestGetOrCreateSurvivesConcurrentRemove(t *testing.T) {
	// booking mutations fire Remove against keys that status reads are
	// populating; the read must never fail because an invalidation landed
	// between the write and the decode
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_ = c.Remove(ctx, "k")
				}
			}
		}()
	}

	for i := 0; i < 5000; i++ {
		var got int
		err := c.GetOrCreate(ctx, "k", &got, time.Minute, func(ctx context.Context) (any, error) {
			return i, nil
		})
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
	}
	close(done)
	wg.Wait()
}

func TestRemoveMissingKeyIsNoop(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	if err := c.Remove(context.Background(), "absent"); err != nil {
		t.Fatalf("remove of missing key should be a no-op, got %v", err)
	}
}
