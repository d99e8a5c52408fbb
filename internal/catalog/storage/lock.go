package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryLock is an ImportLock for a single process.
type MemoryLock struct {
	mu        sync.Mutex
	owner     string
	expiresAt time.Time
	now       func() time.Time
}

func NewMemoryLock(now func() time.Time) *MemoryLock {
	if now == nil {
		now = time.Now
	}
	return &MemoryLock{now: now}
}

func (l *MemoryLock) Acquire(_ context.Context, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if l.owner != "" && l.owner != owner && now.Before(l.expiresAt) {
		return false, nil
	}
	l.owner = owner
	l.expiresAt = now.Add(ttl)
	return true, nil
}

func (l *MemoryLock) Refresh(_ context.Context, owner string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == owner {
		l.expiresAt = l.now().Add(ttl)
	}
	return nil
}

func (l *MemoryLock) Release(_ context.Context, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == owner {
		l.owner = ""
		l.expiresAt = time.Time{}
	}
	return nil
}

func (l *MemoryLock) Active(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner != "" && l.now().Before(l.expiresAt), nil
}
