package velocity

import (
	"context"
	"testing"
	"time"

	"github.com/Shauryaditya/aml-case-processor/internal/cache"
)

func TestSubmissionVelocity(t *testing.T) {
	lru := cache.NewLRUCache(100)
	defer lru.Close()

	svc := NewService(lru, time.Minute, 3)
	ctx := context.Background()

	t.Run("counts submissions", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			count, err := svc.Record(ctx, "tenant-a")
			if err != nil {
				t.Fatalf("Record: %v", err)
			}
			if count != want {
				t.Errorf("count = %d, want %d", count, want)
			}
		}
	})

	t.Run("allows under limit and blocks over", func(t *testing.T) {
		// Fourth submission exceeds the limit of 3.
		ok, count, err := svc.Allow(ctx, "tenant-a")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if ok {
			t.Errorf("submission %d should be blocked at limit %d", count, svc.Limit())
		}
	})

	t.Run("tenant isolation", func(t *testing.T) {
		ok, count, err := svc.Allow(ctx, "tenant-b")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !ok || count != 1 {
			t.Errorf("fresh tenant should be allowed with count 1, got ok=%v count=%d", ok, count)
		}
	})

	t.Run("requires tenant", func(t *testing.T) {
		if _, err := svc.Record(ctx, ""); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})
}

func TestAllowFailsOpen(t *testing.T) {
	svc := NewService(nil, time.Minute, 3)

	ok, _, err := svc.Allow(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !ok {
		t.Error("missing counter backend should fail open")
	}
}

func TestDefaults(t *testing.T) {
	svc := NewService(nil, 0, 0)
	if svc.window != DefaultWindow || svc.limit != DefaultLimit {
		t.Errorf("defaults not applied: window=%v limit=%d", svc.window, svc.limit)
	}
}
