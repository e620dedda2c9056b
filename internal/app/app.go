// Package app builds the signal service from configuration. Both binaries
// share it so the HTTP API and the MCP server see the same pipeline.
package app

import (
	"context"
	"fmt"
	"time"

	"coinsignal/internal/cache"
	"coinsignal/internal/config"
	"coinsignal/internal/indicator"
	"coinsignal/internal/provider"
	"coinsignal/internal/repository"
	"coinsignal/internal/retry"
	"coinsignal/internal/service"
	"coinsignal/internal/signal"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

var newRedisClientFunc = cache.NewRedisClient

// Process names namespace the shared redis cache. Each process owns its own
// signal store, so a cached list is only meaningful to the process that built it.
const (
	ProcessServer = "server"
	ProcessMCP    = "mcp"
)

type Components struct {
	Service *service.SignalService
	Cache   cache.Cache
	Market  *provider.CoinGeckoClient

	redis *redis.Client
}

// Close releases the redis connection, if one was opened.
func (c *Components) Close() error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func Build(ctx context.Context, cfg *config.Config, tracer trace.Tracer, process string) (*Components, error) {
	comps := &Components{}

	ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
	switch cfg.CacheBackend {
	case "redis":
		client, err := newRedisClientFunc(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		comps.redis = client
		comps.Cache = cache.NewRedisCache(client, cache.RedisOptions{Prefix: CachePrefix(cfg, process), TTL: ttl})
	default:
		comps.Cache = cache.NewMemoryCache(ttl, nil)
	}

	comps.Market = provider.NewCoinGeckoClient(tracer, provider.Options{
		BaseURL:      cfg.CoinGeckoBaseURL,
		APIKey:       cfg.CoinGeckoAPIKey,
		VSCurrency:   cfg.VSCurrency,
		RequestDelay: time.Duration(cfg.RequestDelayMillis) * time.Millisecond,
		Timeout:      time.Duration(cfg.UpstreamTimeoutSecs) * time.Second,
	})

	comps.Service = service.NewSignalService(
		tracer,
		comps.Market,
		signal.NewAssembler(indicator.NewEngine(indicator.DefaultConfig()), nil, nil),
		repository.NewSignalRepository(tracer),
		comps.Cache,
		retry.NewController(tracer, comps.Cache, RetryPolicy(cfg), nil),
		service.Options{
			AssetIDs:     cfg.AssetIDs,
			PageSize:     cfg.PageSize,
			OHLCDays:     cfg.OHLCDays,
			Timeframe:    cfg.SignalTimeframe,
			FetchVolumes: cfg.FetchVolumes,
		},
	)

	log.Info().
		Str("cache", cfg.CacheBackend).
		Str("process", process).
		Strs("assets", cfg.AssetIDs).
		Str("timeframe", string(cfg.SignalTimeframe)).
		Msg("signal service ready")
	return comps, nil
}

// CachePrefix is the redis key prefix for one process, e.g. coinsignal:server.
func CachePrefix(cfg *config.Config, process string) string {
	prefix := cfg.CachePrefix
	if prefix == "" {
		prefix = "coinsignal"
	}
	if process == "" {
		return prefix
	}
	return prefix + ":" + process
}

func RetryPolicy(cfg *config.Config) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts
	if cfg.RetryBackoff == "exponential" {
		policy.Backoff = retry.ExponentialBackoff(
			time.Duration(cfg.RetryBackoffInitialMillis)*time.Millisecond,
			time.Duration(cfg.RetryBackoffMaxMillis)*time.Millisecond,
		)
	}
	return policy
}
