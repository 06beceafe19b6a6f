package mt5

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAllowsBurstWithinLimit(t *testing.T) {
	r := newRateLimiter(5)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := r.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first %d requests should not block, took %s", 5, elapsed)
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	r := newRateLimiter(2)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := r.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("third request should wait for the window, waited %s", elapsed)
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	r := newRateLimiter(1)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); err == nil {
		t.Error("expected context deadline error while waiting for a slot")
	}
}

func TestRateLimiterZeroFloorsToOne(t *testing.T) {
	r := newRateLimiter(0)
	if r.limit != 1 {
		t.Errorf("limit = %d, want 1", r.limit)
	}
}
