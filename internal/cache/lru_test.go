package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

func TestLRUCacheBasic(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		if err := c.Set(ctx, "t1", "k1", []byte("v1"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		val, err := c.Get(ctx, "t1", "k1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(val) != "v1" {
			t.Errorf("got %q, want v1", val)
		}
	})

	t.Run("miss returns nil nil", func(t *testing.T) {
		val, err := c.Get(ctx, "t1", "missing")
		if err != nil || val != nil {
			t.Errorf("got %v, %v, want nil, nil", val, err)
		}
	})

	t.Run("tenant isolation", func(t *testing.T) {
		val, err := c.Get(ctx, "t2", "k1")
		if err != nil || val != nil {
			t.Errorf("tenant t2 should not see tenant t1 keys")
		}
	})

	t.Run("tenant required", func(t *testing.T) {
		if _, err := c.Get(ctx, "", "k1"); err == nil {
			t.Error("expected error for empty tenant")
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := c.Delete(ctx, "t1", "k1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		val, _ := c.Get(ctx, "t1", "k1")
		if val != nil {
			t.Error("key should be gone after delete")
		}
	})
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	if err := c.Set(ctx, "t1", "short", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	val, err := c.Get(ctx, "t1", "short")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != nil {
		t.Error("expired entry should be a miss")
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(2)
	ctx := context.Background()

	c.Set(ctx, "t1", "a", []byte("1"), time.Minute)
	c.Set(ctx, "t1", "b", []byte("2"), time.Minute)
	c.Get(ctx, "t1", "a") // a is now most recently used
	c.Set(ctx, "t1", "c", []byte("3"), time.Minute)

	if val, _ := c.Get(ctx, "t1", "b"); val != nil {
		t.Error("least recently used entry should have been evicted")
	}
	if val, _ := c.Get(ctx, "t1", "a"); val == nil {
		t.Error("recently used entry should survive eviction")
	}
	if size, capacity := c.Stats(); size != 2 || capacity != 2 {
		t.Errorf("stats = %d/%d, want 2/2", size, capacity)
	}
}

func TestLRUCacheResultRoundTrip(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	driver := domain.PatternStructuring
	result := &domain.CaseResult{
		Patterns:             []domain.PatternMatch{{Code: domain.PatternStructuring, Name: "Structuring"}},
		RiskScore:            3,
		RiskBand:             domain.BandMedium,
		MainDriver:           &driver,
		SupportingIndicators: []string{"CASH_INTENSITY"},
		Recommendation:       domain.RecommendReview,
	}

	if err := c.SetResult(ctx, "t1", "job-1", result, time.Minute); err != nil {
		t.Fatalf("SetResult: %v", err)
	}

	got, err := c.GetResult(ctx, "t1", "job-1")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached result")
	}
	if got.RiskScore != 3 || got.RiskBand != domain.BandMedium || *got.MainDriver != driver {
		t.Errorf("round trip mangled result: %+v", got)
	}

	if miss, _ := c.GetResult(ctx, "t1", "job-2"); miss != nil {
		t.Error("unknown job should be a miss")
	}
}

func TestLRUCacheCounter(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.IncrementCounter(ctx, "t1", "uploads", time.Minute)
		if err != nil {
			t.Fatalf("IncrementCounter: %v", err)
		}
		if got != want {
			t.Errorf("count = %d, want %d", got, want)
		}
	}

	t.Run("window reset", func(t *testing.T) {
		if _, err := c.IncrementCounter(ctx, "t1", "burst", time.Millisecond); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
		got, err := c.IncrementCounter(ctx, "t1", "burst", time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if got != 1 {
			t.Errorf("count after window expiry = %d, want 1", got)
		}
	})
}

func TestCacheFactory(t *testing.T) {
	c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.(*LRUCache); !ok {
		t.Errorf("memory config should yield LRUCache, got %T", c)
	}

	if _, err := New(domain.CacheConfig{Type: "bogus"}); err == nil {
		t.Error("expected error for unsupported cache type")
	}
}
