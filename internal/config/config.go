package config

import (
	"os"
	"strconv"
	"strings"

	"coinsignal/internal/domain"

	"github.com/rs/zerolog/log"
)

var defaultAssetIDs = []string{"bitcoin", "ethereum", "solana", "cardano", "polkadot", "matic-network"}

type Config struct {
	HTTPAddr         string
	TelegramBotToken string

	CacheBackend string
	RedisURL     string
	CacheTTLSecs int
	CachePrefix  string

	CoinGeckoBaseURL    string
	CoinGeckoAPIKey     string
	VSCurrency          string
	AssetIDs            []string
	PageSize            int
	OHLCDays            int
	SignalTimeframe     domain.Timeframe
	RequestDelayMillis  int
	UpstreamTimeoutSecs int
	FetchVolumes        bool

	RetryMaxAttempts          int
	RetryBackoff              string
	RetryBackoffInitialMillis int
	RetryBackoffMaxMillis     int

	RefreshPollSecs int

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int

	LogLevel     string
	LogFile      string
	OTELEndpoint string
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		CoinGeckoAPIKey:  strings.TrimSpace(os.Getenv("COINGECKO_API_KEY")),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
		LogFile:          strings.TrimSpace(os.Getenv("LOG_FILE")),
		OTELEndpoint:     strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	if cfg.TelegramBotToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, telegram bot disabled")
	}

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "memory"
		if cfg.RedisURL != "" {
			cfg.CacheBackend = "redis"
		}
	}
	if cfg.CacheBackend != "memory" && cfg.CacheBackend != "redis" {
		log.Warn().Str("value", cfg.CacheBackend).Msg("unsupported CACHE_BACKEND, defaulting to memory")
		cfg.CacheBackend = "memory"
	}
	if cfg.CacheBackend == "redis" && cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.CacheTTLSecs = 30
	if v := strings.TrimSpace(os.Getenv("CACHE_TTL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheTTLSecs = n
		}
	}

	cfg.CachePrefix = strings.Trim(strings.TrimSpace(os.Getenv("CACHE_PREFIX")), ":")
	if cfg.CachePrefix == "" {
		cfg.CachePrefix = "coinsignal"
	}

	cfg.CoinGeckoBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("COINGECKO_BASE_URL")), "/")
	if cfg.CoinGeckoBaseURL == "" {
		cfg.CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	}

	cfg.VSCurrency = strings.ToLower(strings.TrimSpace(os.Getenv("VS_CURRENCY")))
	if cfg.VSCurrency == "" {
		cfg.VSCurrency = "usd"
	}

	cfg.AssetIDs = parseAssetIDs(os.Getenv("COIN_IDS"))

	cfg.PageSize = 50
	if v := strings.TrimSpace(os.Getenv("COIN_PAGE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 250 {
			cfg.PageSize = n
		}
	}

	cfg.OHLCDays = 14
	if v := strings.TrimSpace(os.Getenv("OHLC_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OHLCDays = n
		}
	}

	cfg.SignalTimeframe = domain.Timeframe4h
	if v := strings.TrimSpace(os.Getenv("SIGNAL_TIMEFRAME")); v != "" {
		if tf := domain.Timeframe(strings.ToLower(v)); tf.IsValid() {
			cfg.SignalTimeframe = tf
		} else {
			log.Warn().Str("value", v).Msg("unsupported SIGNAL_TIMEFRAME, defaulting to 4h")
		}
	}

	cfg.RequestDelayMillis = 1000
	if v := strings.TrimSpace(os.Getenv("REQUEST_DELAY_MILLIS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RequestDelayMillis = n
		}
	}

	cfg.UpstreamTimeoutSecs = 10
	if v := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.UpstreamTimeoutSecs = n
		}
	}

	cfg.FetchVolumes = true
	if v := strings.TrimSpace(os.Getenv("FETCH_VOLUMES")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.FetchVolumes = b
		}
	}

	cfg.RetryMaxAttempts = 5
	if v := strings.TrimSpace(os.Getenv("RETRY_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryMaxAttempts = n
		}
	}

	cfg.RetryBackoff = strings.ToLower(strings.TrimSpace(os.Getenv("RETRY_BACKOFF")))
	if cfg.RetryBackoff == "" {
		cfg.RetryBackoff = "none"
	}
	if cfg.RetryBackoff != "none" && cfg.RetryBackoff != "exponential" {
		log.Warn().Str("value", cfg.RetryBackoff).Msg("unsupported RETRY_BACKOFF, defaulting to none")
		cfg.RetryBackoff = "none"
	}

	cfg.RetryBackoffInitialMillis = 250
	if v := strings.TrimSpace(os.Getenv("RETRY_BACKOFF_INITIAL_MILLIS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryBackoffInitialMillis = n
		}
	}

	cfg.RetryBackoffMaxMillis = 5000
	if v := strings.TrimSpace(os.Getenv("RETRY_BACKOFF_MAX_MILLIS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= cfg.RetryBackoffInitialMillis {
			cfg.RetryBackoffMaxMillis = n
		}
	}
	if cfg.RetryBackoffMaxMillis < cfg.RetryBackoffInitialMillis {
		cfg.RetryBackoffMaxMillis = cfg.RetryBackoffInitialMillis
	}

	cfg.RefreshPollSecs = 0
	if v := strings.TrimSpace(os.Getenv("REFRESH_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RefreshPollSecs = n
		}
	}

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Warn().Str("value", cfg.MCPTransport).Msg("unsupported MCP_TRANSPORT, defaulting to stdio")
		cfg.MCPTransport = "stdio"
	}

	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")

	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}

	cfg.MCPHTTPPort = 8090
	if v := strings.TrimSpace(os.Getenv("MCP_HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPHTTPPort = n
		}
	}

	cfg.MCPRequestTimeoutSecs = 30
	if v := strings.TrimSpace(os.Getenv("MCP_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRequestTimeoutSecs = n
		}
	}

	cfg.MCPRateLimitPerMin = 60
	if v := strings.TrimSpace(os.Getenv("MCP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRateLimitPerMin = n
		}
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg
}

func parseAssetIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), defaultAssetIDs...)
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		id := strings.ToLower(strings.TrimSpace(part))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return append([]string(nil), defaultAssetIDs...)
	}
	return out
}
