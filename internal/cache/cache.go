// Package cache holds assembled signal lists keyed by list parameters. Entries
// are valid for TTL after they are stored but are kept longer so a failed
// refresh can still serve the last good list.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coinsignal/internal/domain"
)

const DefaultTTL = 30 * time.Second

var ErrCacheMiss = errors.New("cache miss")

type Entry struct {
	Key      string          `json:"key"`
	Signals  []domain.Signal `json:"signals"`
	StoredAt time.Time       `json:"stored_at"`
}

// Cache is implemented by MemoryCache and RedisCache. Get returns stale
// entries too; callers check IsValid.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, signals []domain.Signal) error
	Invalidate(ctx context.Context, key string) error
	InvalidateAll(ctx context.Context) error
	IsValid(entry *Entry) bool
}

// Key derives the cache key for a list request.
func Key(sortSpec string, limit int) string {
	sortSpec = strings.ToLower(strings.TrimSpace(sortSpec))
	return fmt.Sprintf("signals:%s:%d", sortSpec, limit)
}

// isValid is shared by both implementations.
func isValid(entry *Entry, now time.Time, ttl time.Duration) bool {
	if entry == nil {
		return false
	}
	return now.Sub(entry.StoredAt) < ttl
}
