package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agroprecios/backend/internal/domain"
)

func newTestCache(t *testing.T, now *time.Time) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(time.Hour)
	c.now = func() time.Time { return *now }
	t.Cleanup(c.Close)
	return c
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 27, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		refs    []string
		ttl     time.Duration
		advance time.Duration
		wantHit bool
	}{
		{name: "fresh entry", refs: []string{"/category/frutas", "/category/verduras"}, ttl: 6 * time.Hour, advance: time.Hour, wantHit: true},
		{name: "expired entry", refs: []string{"/category/frutas"}, ttl: time.Minute, advance: 2 * time.Minute},
		{name: "non-positive ttl is not stored", refs: []string{"huevos"}, ttl: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := now
			cache := newTestCache(t, &clock)

			if err := cache.Set(ctx, "categories:stock", tt.refs, tt.ttl); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			clock = clock.Add(tt.advance)

			got, err := cache.Get(ctx, "categories:stock")
			if !tt.wantHit {
				if !errors.Is(err, domain.ErrCacheMiss) {
					t.Errorf("Get() error = %v, want ErrCacheMiss", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if len(got) != len(tt.refs) {
				t.Fatalf("Get() = %v, want %v", got, tt.refs)
			}
			for i := range got {
				if got[i] != tt.refs[i] {
					t.Errorf("Get()[%d] = %q, want %q", i, got[i], tt.refs[i])
				}
			}
		})
	}
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	ctx := context.Background()
	clock := time.Now()
	cache := newTestCache(t, &clock)

	refs := []string{"frutas"}
	_ = cache.Set(ctx, "k", refs, time.Hour)
	refs[0] = "mutated"

	got, _ := cache.Get(ctx, "k")
	got[0] = "mutated again"

	again, _ := cache.Get(ctx, "k")
	if again[0] != "frutas" {
		t.Errorf("cached value = %q, want frutas", again[0])
	}
}

func TestMemoryCache_Miss(t *testing.T) {
	clock := time.Now()
	cache := newTestCache(t, &clock)

	if _, err := cache.Get(context.Background(), "categories:biggie"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCache_DeleteAndSweep(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 6, 27, 10, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &clock)

	_ = cache.Set(ctx, "short", []string{"a"}, time.Minute)
	_ = cache.Set(ctx, "long", []string{"b"}, time.Hour)
	_ = cache.Set(ctx, "gone", []string{"c"}, time.Hour)

	if err := cache.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(cache.data) != 2 {
		t.Errorf("entries = %d, want 2", len(cache.data))
	}

	clock = clock.Add(10 * time.Minute)
	cache.sweep()

	if len(cache.data) != 1 {
		t.Errorf("entries after sweep = %d, want 1", len(cache.data))
	}
	if _, err := cache.Get(ctx, "long"); err != nil {
		t.Errorf("Get(long) error = %v", err)
	}
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	cache := NewMemoryCache(time.Millisecond)
	cache.Close()
	cache.Close()
}
