// Package servicetest wires a SignalService against a scripted market for
// tests of the packages built on top of it.
package servicetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coinsignal/internal/cache"
	"coinsignal/internal/domain"
	"coinsignal/internal/indicator"
	"coinsignal/internal/provider"
	"coinsignal/internal/repository"
	"coinsignal/internal/retry"
	"coinsignal/internal/service"
	"coinsignal/internal/signal"

	"go.opentelemetry.io/otel/trace"
)

var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Market serves fixed snapshots and a 30 point rising OHLC series per asset.
// Err, when set, is returned by every snapshot call.
type Market struct {
	mu        sync.Mutex
	Snapshots []domain.CoinSnapshot
	Err       error
	calls     int
}

func (m *Market) SetSnapshots(s []domain.CoinSnapshot) {
	m.mu.Lock()
	m.Snapshots = s
	m.mu.Unlock()
}

func (m *Market) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}

func (m *Market) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Market) FetchMarketSnapshot(ctx context.Context, ids []string, pageSize int) ([]domain.CoinSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]domain.CoinSnapshot(nil), m.Snapshots...), nil
}

// Ping fails with Err, like the snapshot call.
func (m *Market) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

func (m *Market) FetchOHLC(ctx context.Context, assetID string, lookbackDays int) (domain.OHLCSeries, error) {
	series := domain.OHLCSeries{AssetID: assetID}
	for i := 0; i < 30; i++ {
		c := 100 + float64(i)
		series.Points = append(series.Points, domain.OHLCPoint{
			Time: time.Unix(0, 0).UTC().Add(time.Duration(i) * 4 * time.Hour),
			Open: c, High: c + 1, Low: c - 1, Close: c,
		})
	}
	return series, nil
}

func (m *Market) FetchVolumes(ctx context.Context, assetID string, lookbackDays int) ([]provider.VolumeSample, error) {
	return nil, nil
}

func DefaultSnapshots() []domain.CoinSnapshot {
	return []domain.CoinSnapshot{
		{ID: "bitcoin", Symbol: "btc", CurrentPrice: 43250.5, PriceChangePercentage24h: 2.45, TotalVolume: 2e10, MarketCap: 8e11},
		{ID: "ethereum", Symbol: "eth", CurrentPrice: 2300, PriceChangePercentage24h: -1.2, TotalVolume: 1e10, MarketCap: 3e11},
	}
}

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type Fixture struct {
	Service *service.SignalService
	Market  *Market
	Cache   *cache.MemoryCache
	Clock   *Clock
}

// New builds a service with the real assembler, store, cache and retry
// controller. IDs are sig-1, sig-2 and so on.
func New(market *Market) *Fixture {
	if market == nil {
		market = &Market{}
	}
	if market.Snapshots == nil {
		market.Snapshots = DefaultSnapshots()
	}
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	clock := &Clock{t: Epoch}

	var (
		idMu sync.Mutex
		ids  int
	)
	newID := func() string {
		idMu.Lock()
		defer idMu.Unlock()
		ids++
		return fmt.Sprintf("sig-%d", ids)
	}

	mem := cache.NewMemoryCache(cache.DefaultTTL, clock.Now)
	svc := service.NewSignalService(
		tracer,
		market,
		signal.NewAssembler(indicator.NewEngine(indicator.DefaultConfig()), clock.Now, newID),
		repository.NewSignalRepository(tracer),
		mem,
		retry.NewController(tracer, mem, retry.Policy{MaxAttempts: 2}, nil),
		service.Options{
			AssetIDs:  []string{"bitcoin", "ethereum"},
			PageSize:  50,
			OHLCDays:  14,
			Timeframe: domain.Timeframe4h,
			Now:       clock.Now,
			NewID:     newID,
		},
	)
	return &Fixture{Service: svc, Market: market, Cache: mem, Clock: clock}
}
