package cache

import (
	"context"
	"sync"
	"time"
)

// SessionCache stores short-lived session entries keyed by string.
type SessionCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is an in-process SessionCache with per-entry expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (mc *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	mc.now = now
	return mc
}

func (mc *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e, ok := mc.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !mc.now().Before(e.expiresAt) {
		delete(mc.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value under key. A ttl <= 0 keeps the entry until deleted.
func (mc *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = mc.now().Add(ttl)
	}
	mc.entries[key] = e
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, key string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	_, ok := mc.entries[key]
	delete(mc.entries, key)
	return ok, nil
}

// PurgeExpired drops expired entries and returns how many were removed.
func (mc *MemoryCache) PurgeExpired() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	removed := 0
	for k, e := range mc.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(mc.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor purges expired entries every interval until ctx is done.
func (mc *MemoryCache) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mc.PurgeExpired()
			}
		}
	}()
}
