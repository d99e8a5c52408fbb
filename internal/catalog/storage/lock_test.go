package storage

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryLockExclusiveUntilExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	lock := NewMemoryLock(clock.Now)

	ok, _ := lock.Acquire(ctx, "run-a", 30*time.Second)
	if !ok {
		t.Fatalf("first acquire must succeed")
	}
	if ok, _ := lock.Acquire(ctx, "run-b", 30*time.Second); ok {
		t.Fatalf("second holder must be rejected while the lock is live")
	}

	clock.Advance(20 * time.Second)
	_ = lock.Refresh(ctx, "run-a", 30*time.Second)
	clock.Advance(20 * time.Second)
	if ok, _ := lock.Acquire(ctx, "run-b", 30*time.Second); ok {
		t.Fatalf("refresh must extend the expiry")
	}

	clock.Advance(31 * time.Second)
	if active, _ := lock.Active(ctx); active {
		t.Fatalf("lock must self-expire")
	}
	if ok, _ := lock.Acquire(ctx, "run-b", 30*time.Second); !ok {
		t.Fatalf("expired lock must be takeable")
	}
}

func TestMemoryLockReleaseOnlyByOwner(t *testing.T) {
	ctx := context.Background()
	lock := NewMemoryLock(nil)
	_, _ = lock.Acquire(ctx, "run-a", time.Minute)

	_ = lock.Release(ctx, "run-b")
	if active, _ := lock.Active(ctx); !active {
		t.Fatalf("foreign release must not clear the lock")
	}
	_ = lock.Release(ctx, "run-a")
	if active, _ := lock.Active(ctx); active {
		t.Fatalf("owner release must clear the lock")
	}
}
