package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type counter struct {
	calls int
	value string
	err   error
}

func (c *counter) compute(context.Context) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.value, nil
}

func TestTTLGetOrCompute(t *testing.T) {
	src := &counter{value: "page"}
	cache := NewTTL[string](time.Minute)

	ctx := context.Background()

	got, err := cache.GetOrCompute(ctx, "vertical", src.compute)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "page" {
		t.Fatalf("unexpected value: %q", got)
	}
	if src.calls != 1 {
		t.Fatalf("expected compute called once got %d", src.calls)
	}

	if _, err := cache.GetOrCompute(ctx, "vertical", src.compute); err != nil {
		t.Fatalf("get: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected cached result got %d calls", src.calls)
	}
}

func TestTTLErrorsAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	src := &counter{err: boom}
	cache := NewTTL[string](time.Minute)

	if _, err := cache.GetOrCompute(context.Background(), "k", src.compute); !errors.Is(err, boom) {
		t.Fatalf("expected boom got %v", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected nothing cached got %d entries", cache.Len())
	}

	src.err = nil
	src.value = "ok"
	if _, err := cache.GetOrCompute(context.Background(), "k", src.compute); err != nil {
		t.Fatalf("get: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected recompute after error got %d calls", src.calls)
	}
}

func TestTTLExpiry(t *testing.T) {
	src := &counter{value: "page"}
	cache := NewTTL[string](time.Minute)

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if _, err := cache.GetOrCompute(context.Background(), "k", src.compute); err != nil {
		t.Fatalf("get: %v", err)
	}

	now = now.Add(2 * time.Minute)

	if _, err := cache.GetOrCompute(context.Background(), "k", src.compute); err != nil {
		t.Fatalf("get: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected cache miss after expiry got %d calls", src.calls)
	}
}

func TestTTLClearAndDelete(t *testing.T) {
	src := &counter{value: "page"}
	cache := NewTTL[string](0)
	if cache.ttl <= 0 {
		t.Fatalf("expected ttl to default positive got %v", cache.ttl)
	}

	ctx := context.Background()
	_, _ = cache.GetOrCompute(ctx, "a", src.compute)
	_, _ = cache.GetOrCompute(ctx, "b", src.compute)

	cache.Delete("a")
	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry after delete got %d", cache.Len())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache after clear got %d", cache.Len())
	}
}

func TestTTLExpiredEntriesAreDropped(t *testing.T) {
	src := &counter{value: "page"}
	cache := NewTTL[string](time.Minute)

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	for i := range 50 {
		if _, err := cache.GetOrCompute(ctx, fmt.Sprintf("vertical:cursor-%d:20", i), src.compute); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if cache.Len() != 50 {
		t.Fatalf("expected 50 entries got %d", cache.Len())
	}

	now = now.Add(2 * time.Minute)

	if removed := cache.Prune(); removed != 50 {
		t.Fatalf("expected 50 pruned entries got %d", removed)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache after prune got %d", cache.Len())
	}
}

func TestTTLExpiredEntryRemovedOnMiss(t *testing.T) {
	src := &counter{err: errors.New("unavailable")}
	cache := NewTTL[string](time.Minute)

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	cache.items["stale"] = entry[string]{value: "old", expires: now.Add(-time.Second)}

	if _, err := cache.GetOrCompute(context.Background(), "stale", src.compute); err == nil {
		t.Fatal("expected compute error")
	}
	if cache.Len() != 0 {
		t.Fatalf("expected stale entry to be dropped got %d entries", cache.Len())
	}
}

func TestTTLRespectsMaxEntries(t *testing.T) {
	src := &counter{value: "page"}
	cache := NewBoundedTTL[string](time.Minute, 8)

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	for i := range 5000 {
		now = now.Add(time.Millisecond)
		if _, err := cache.GetOrCompute(ctx, fmt.Sprintf("vertical:%d:20", i), src.compute); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if cache.Len() != 8 {
		t.Fatalf("expected cache capped at 8 entries got %d", cache.Len())
	}

	// The most recent key survives eviction.
	calls := src.calls
	if _, err := cache.GetOrCompute(ctx, "vertical:4999:20", src.compute); err != nil {
		t.Fatalf("get: %v", err)
	}
	if src.calls != calls {
		t.Fatalf("expected newest entry to stay cached")
	}
}

func TestTTLClearDuringComputeSkipsStore(t *testing.T) {
	cache := NewTTL[string](time.Minute)
	ctx := context.Background()

	calls := 0
	got, err := cache.GetOrCompute(ctx, "vertical", func(context.Context) (string, error) {
		calls++
		cache.Clear()
		return "stale", nil
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "stale" {
		t.Fatalf("expected computed value returned got %q", got)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected value computed across Clear to be dropped got %d entries", cache.Len())
	}

	if _, err := cache.GetOrCompute(ctx, "vertical", func(context.Context) (string, error) {
		calls++
		return "fresh", nil
	}); err != nil {
		t.Fatalf("get: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected recompute after clear got %d calls", calls)
	}
}
