package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinsignal/internal/domain"

	"github.com/alicebob/miniredis/v2"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *testClock {
	return &testClock{t: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func sampleSignals() []domain.Signal {
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return []domain.Signal{{
		ID:         "a",
		Symbol:     "BTCUSDT",
		SignalType: domain.SignalBuy,
		Strength:   52,
		EntryPrice: 43250.5,
		Timeframe:  domain.Timeframe4h,
		Indicators: []domain.IndicatorResult{{
			Name:   domain.IndicatorEMACross,
			Family: domain.FamilyTrend,
			Value:  3.5,
			Status: domain.StatusGoldenCross,
			Detail: domain.EMACrossDetail{FastEMA: 10, SlowEMA: 6.5},
		}},
		Status:    domain.SignalActive,
		Source:    domain.SourceGenerated,
		CreatedAt: created,
		UpdatedAt: created,
	}}
}

func newRedisCache(t *testing.T, clock *testClock) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, RedisOptions{Prefix: "test", TTL: DefaultTTL, Now: clock.Now}), mr
}

// runCacheContract exercises behavior both implementations must share.
func runCacheContract(t *testing.T, c Cache, clock *testClock) {
	t.Helper()
	ctx := context.Background()
	key := Key("-created_date", 50)

	if _, err := c.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if c.IsValid(nil) {
		t.Fatal("nil entry must not be valid")
	}

	if err := c.Put(ctx, key, sampleSignals()); err != nil {
		t.Fatalf("put: %v", err)
	}
	entry, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.Key != key || len(entry.Signals) != 1 || entry.Signals[0].ID != "a" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if _, ok := entry.Signals[0].Indicators[0].Detail.(domain.EMACrossDetail); !ok {
		t.Fatalf("indicator detail lost its type: %#v", entry.Signals[0].Indicators[0].Detail)
	}
	if !c.IsValid(entry) {
		t.Fatal("fresh entry should be valid")
	}

	clock.Advance(29 * time.Second)
	if !c.IsValid(entry) {
		t.Fatal("entry should still be valid before the TTL")
	}
	clock.Advance(time.Second)
	if c.IsValid(entry) {
		t.Fatal("entry should be stale at the TTL")
	}
	stale, err := c.Get(ctx, key)
	if err != nil || stale == nil {
		t.Fatalf("stale entry should still be returned, got %v", err)
	}

	other := Key("strength", 10)
	if err := c.Put(ctx, other, nil); err != nil {
		t.Fatalf("put other: %v", err)
	}
	if err := c.Invalidate(ctx, key); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := c.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after invalidate, got %v", err)
	}
	if _, err := c.Get(ctx, other); err != nil {
		t.Fatalf("other key should survive invalidate: %v", err)
	}
	if err := c.InvalidateAll(ctx); err != nil {
		t.Fatalf("invalidate all: %v", err)
	}
	if _, err := c.Get(ctx, other); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after invalidate all, got %v", err)
	}
}

func TestMemoryCacheContract(t *testing.T) {
	clock := newClock()
	runCacheContract(t, NewMemoryCache(DefaultTTL, clock.Now), clock)
}

func TestRedisCacheContract(t *testing.T) {
	clock := newClock()
	c, _ := newRedisCache(t, clock)
	runCacheContract(t, c, clock)
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	c := NewMemoryCache(0, nil)
	ctx := context.Background()
	signals := sampleSignals()
	if err := c.Put(ctx, "k", signals); err != nil {
		t.Fatalf("put: %v", err)
	}
	signals[0].Symbol = "MUTATED"

	entry, _ := c.Get(ctx, "k")
	if entry.Signals[0].Symbol != "BTCUSDT" {
		t.Fatal("cache kept a reference to the caller's slice")
	}
	entry.Signals[0].Indicators[0].Value = -1

	again, _ := c.Get(ctx, "k")
	if again.Signals[0].Indicators[0].Value != 3.5 {
		t.Fatal("cache returned a shared indicator slice")
	}
}

func TestRedisCacheRetainsPastTTL(t *testing.T) {
	clock := newClock()
	c, mr := newRedisCache(t, clock)
	ctx := context.Background()
	if err := c.Put(ctx, "k", sampleSignals()); err != nil {
		t.Fatalf("put: %v", err)
	}

	ttl := mr.TTL("test:k")
	if ttl != defaultStaleRetention {
		t.Fatalf("expected retention %s, got %s", defaultStaleRetention, ttl)
	}
	mr.FastForward(time.Minute)
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("entry should be retained past the TTL: %v", err)
	}
	mr.FastForward(defaultStaleRetention)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after retention, got %v", err)
	}
}

func TestRedisCacheCorruptEntry(t *testing.T) {
	c, mr := newRedisCache(t, newClock())
	if err := mr.Set("test:k", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := c.Get(context.Background(), "k")
	if err == nil || errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNewRedisClientAcceptsURL(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if err := client.Set(context.Background(), "x", "1", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
}

func TestNewRedisClientPingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisClient(context.Background(), addr); err == nil {
		t.Fatal("expected ping failure")
	}
}

func TestKey(t *testing.T) {
	if Key(" -Created_Date ", 50) != "signals:-created_date:50" {
		t.Fatalf("unexpected key %q", Key(" -Created_Date ", 50))
	}
	if Key("strength", 10) == Key("strength", 20) {
		t.Fatal("limit must be part of the key")
	}
}

var _ Cache = (*MemoryCache)(nil)
var _ Cache = (*RedisCache)(nil)
