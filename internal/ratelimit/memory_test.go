package ratelimit

import (
	"context"
	"testing"
	"time"
)

func newTestLimiter(limit int, window time.Duration) (*Memory, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(Config{Limit: limit, Window: window}, WithNowFunc(func() time.Time { return now }))
	return m, &now
}

func TestMemory_AllowsUpToLimit(t *testing.T) {
	m, _ := newTestLimiter(3, time.Minute)
	defer m.Stop()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := m.Allow(ctx, "k")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d rejected, expected allowed", i+1)
		}
		if want := 3 - i - 1; res.Remaining != want {
			t.Errorf("request %d: remaining = %d, want %d", i+1, res.Remaining, want)
		}
	}

	res, err := m.Allow(ctx, "k")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if res.Allowed {
		t.Fatal("request over the limit was allowed")
	}
}

func TestMemory_RejectionCarriesResetTime(t *testing.T) {
	m, now := newTestLimiter(1, time.Minute)
	defer m.Stop()

	ctx := context.Background()
	first := *now
	if res, _ := m.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("first request rejected")
	}

	*now = now.Add(10 * time.Second)
	res, _ := m.Allow(ctx, "k")
	if res.Allowed {
		t.Fatal("second request within window was allowed")
	}
	if want := first.Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", res.ResetAt, want)
	}
	if ra := res.RetryAfter(*now); ra != 51 {
		t.Errorf("RetryAfter = %d, want 51", ra)
	}
}

func TestMemory_WindowSlides(t *testing.T) {
	m, now := newTestLimiter(2, time.Minute)
	defer m.Stop()

	ctx := context.Background()
	m.Allow(ctx, "k")
	*now = now.Add(30 * time.Second)
	m.Allow(ctx, "k")

	if res, _ := m.Allow(ctx, "k"); res.Allowed {
		t.Fatal("third request within window was allowed")
	}

	// 61s after the first request it falls out of the window and one slot
	// frees up.
	*now = now.Add(31 * time.Second)
	res, _ := m.Allow(ctx, "k")
	if !res.Allowed {
		t.Fatal("request after window slid was rejected")
	}
	if res, _ := m.Allow(ctx, "k"); res.Allowed {
		t.Fatal("limit not enforced after slide")
	}
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	m, _ := newTestLimiter(1, time.Minute)
	defer m.Stop()

	ctx := context.Background()
	if res, _ := m.Allow(ctx, "a"); !res.Allowed {
		t.Fatal("first key rejected")
	}
	if res, _ := m.Allow(ctx, "b"); !res.Allowed {
		t.Fatal("second key rejected, keys should not share budgets")
	}
	if res, _ := m.Allow(ctx, "a"); res.Allowed {
		t.Fatal("first key allowed over its limit")
	}
}

func TestMemory_EvictsStaleKeys(t *testing.T) {
	m, now := newTestLimiter(5, time.Minute)
	defer m.Stop()

	ctx := context.Background()
	m.Allow(ctx, "old")

	*now = now.Add(2 * time.Hour)
	m.Allow(ctx, "fresh")
	m.evictStale()

	m.mu.Lock()
	_, oldKept := m.entries["old"]
	_, freshKept := m.entries["fresh"]
	m.mu.Unlock()

	if oldKept {
		t.Error("stale key survived eviction")
	}
	if !freshKept {
		t.Error("fresh key was evicted")
	}
}

func TestResult_RetryAfterFloorsAtOne(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := Result{ResetAt: now.Add(100 * time.Millisecond)}
	if got := r.RetryAfter(now); got != 1 {
		t.Errorf("RetryAfter = %d, want 1", got)
	}
	r = Result{ResetAt: now.Add(-time.Second)}
	if got := r.RetryAfter(now); got != 1 {
		t.Errorf("RetryAfter for past reset = %d, want 1", got)
	}
}
