package limiter

import (
	"context"
	"testing"
	"time"
)

func TestMemory_BlocksAndExpires(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	l := NewMemory(Policy{Window: time.Minute, MaxFails: 3, BlockFor: 5 * time.Minute})
	l.now = func() time.Time { return now }
	ctx := context.Background()
	peer := HashIP("10.0.0.1")

	for i := 0; i < 2; i++ {
		if blocked, _, _ := l.Failure(ctx, peer); blocked {
			t.Fatalf("blocked too early at %d", i)
		}
	}
	if ok, _, _ := l.Allow(ctx, HashIP("10.0.0.2")); !ok {
		t.Fatalf("other peer must be allowed")
	}
	blocked, dur, _ := l.Failure(ctx, peer)
	if !blocked || dur != 5*time.Minute {
		t.Fatalf("want block, got %v %v", blocked, dur)
	}
	if ok, retry, _ := l.Allow(ctx, peer); ok || retry != 5*time.Minute {
		t.Fatalf("want denied with retry, got %v %v", ok, retry)
	}

	now = now.Add(6 * time.Minute)
	if ok, _, _ := l.Allow(ctx, peer); !ok {
		t.Fatalf("block must expire")
	}
	// the window has passed too, so counting restarts
	if blocked, _, _ := l.Failure(ctx, peer); blocked {
		t.Fatalf("count must restart after window")
	}
}
