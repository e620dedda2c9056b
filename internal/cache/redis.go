package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"coinsignal/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	defaultPrefix = "coinsignal"
	// entries outlive their TTL so a failed refresh can fall back to them
	defaultStaleRetention = 10 * time.Minute
)

// NewRedisClient connects to addr, which may be host:port or a redis:// URL.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	var opts *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("connected to redis")
	return client, nil
}

type RedisOptions struct {
	Prefix         string
	TTL            time.Duration
	StaleRetention time.Duration
	Now            func() time.Time
}

// RedisCache stores each entry as JSON under prefix:key and tracks the keys it
// wrote in a set so InvalidateAll does not need SCAN.
type RedisCache struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewRedisCache(client *redis.Client, opts RedisOptions) *RedisCache {
	c := &RedisCache{
		client:    client,
		prefix:    opts.Prefix,
		ttl:       opts.TTL,
		retention: opts.StaleRetention,
		now:       opts.Now,
	}
	if c.prefix == "" {
		c.prefix = defaultPrefix
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.retention < c.ttl {
		c.retention = defaultStaleRetention
		if c.retention < c.ttl {
			c.retention = c.ttl
		}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

func (c *RedisCache) wrapKey(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisCache) indexKey() string {
	return c.prefix + ":_keys"
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, c.wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return &entry, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, signals []domain.Signal) error {
	entry := Entry{Key: key, Signals: signals, StoredAt: c.now().UTC()}
	if entry.Signals == nil {
		entry.Signals = []domain.Signal{}
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.wrapKey(key), data, c.retention)
		pipe.SAdd(ctx, c.indexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.wrapKey(key))
		pipe.SRem(ctx, c.indexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	keys, err := c.client.SMembers(ctx, c.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("redis list cache keys: %w", err)
	}

	wrapped := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		wrapped = append(wrapped, c.wrapKey(k))
	}
	wrapped = append(wrapped, c.indexKey())
	if err := c.client.Del(ctx, wrapped...).Err(); err != nil {
		return fmt.Errorf("redis invalidate all: %w", err)
	}
	return nil
}

func (c *RedisCache) IsValid(entry *Entry) bool {
	return isValid(entry, c.now(), c.ttl)
}
