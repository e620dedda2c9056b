package cache

import (
	"context"
	"sync"
	"time"

	"coinsignal/internal/domain"
)

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	entry.Signals = domain.CloneSignals(entry.Signals)
	return &entry, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, signals []domain.Signal) error {
	entry := Entry{
		Key:      key,
		Signals:  domain.CloneSignals(signals),
		StoredAt: c.now(),
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) IsValid(entry *Entry) bool {
	return isValid(entry, c.now(), c.ttl)
}
