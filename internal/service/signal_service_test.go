package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"coinsignal/internal/cache"
	"coinsignal/internal/domain"
	"coinsignal/internal/indicator"
	"coinsignal/internal/provider"
	"coinsignal/internal/repository"
	"coinsignal/internal/retry"
	"coinsignal/internal/signal"

	"go.opentelemetry.io/otel/trace"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type stubMarket struct {
	mu            sync.Mutex
	snapshots     []domain.CoinSnapshot
	snapshotErrs  []error
	snapshotCalls int
	ohlcCalls     int
	volumeCalls   int
	ohlcErr       map[string]error
	volumeErr     error
	delay         time.Duration
}

func (s *stubMarket) FetchMarketSnapshot(ctx context.Context, ids []string, pageSize int) ([]domain.CoinSnapshot, error) {
	s.mu.Lock()
	s.snapshotCalls++
	call := s.snapshotCalls
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if call <= len(s.snapshotErrs) && s.snapshotErrs[call-1] != nil {
		return nil, s.snapshotErrs[call-1]
	}
	return append([]domain.CoinSnapshot(nil), s.snapshots...), nil
}

func (s *stubMarket) FetchOHLC(ctx context.Context, assetID string, lookbackDays int) (domain.OHLCSeries, error) {
	s.mu.Lock()
	s.ohlcCalls++
	s.mu.Unlock()
	if err := s.ohlcErr[assetID]; err != nil {
		return domain.OHLCSeries{}, err
	}
	base := time.Unix(0, 0).UTC()
	series := domain.OHLCSeries{AssetID: assetID}
	for i := 0; i < 30; i++ {
		c := 100 + float64(i)
		series.Points = append(series.Points, domain.OHLCPoint{
			Time: base.Add(time.Duration(i) * 4 * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c,
		})
	}
	return series, nil
}

func (s *stubMarket) FetchVolumes(ctx context.Context, assetID string, lookbackDays int) ([]provider.VolumeSample, error) {
	s.mu.Lock()
	s.volumeCalls++
	s.mu.Unlock()
	if s.volumeErr != nil {
		return nil, s.volumeErr
	}
	return []provider.VolumeSample{{Time: time.Unix(0, 0).UTC(), Volume: 1000}}, nil
}

func (s *stubMarket) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotCalls
}

func defaultSnapshots() []domain.CoinSnapshot {
	return []domain.CoinSnapshot{
		{ID: "bitcoin", Symbol: "btc", CurrentPrice: 43250.5, PriceChangePercentage24h: 2.45, TotalVolume: 2e10, MarketCap: 8e11},
		{ID: "ethereum", Symbol: "eth", CurrentPrice: 2300, PriceChangePercentage24h: -1.2, TotalVolume: 1e10, MarketCap: 3e11},
		{ID: "solana", Symbol: "sol", CurrentPrice: 95, PriceChangePercentage24h: 7.8, TotalVolume: 2e9, MarketCap: 4e10},
	}
}

type fixture struct {
	svc    *SignalService
	market *stubMarket
	cache  *cache.MemoryCache
	clock  *testClock
}

func newFixture(t *testing.T, market *stubMarket) *fixture {
	t.Helper()
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	if market.snapshots == nil {
		market.snapshots = defaultSnapshots()
	}

	ids := 0
	var idMu sync.Mutex
	newID := func() string {
		idMu.Lock()
		defer idMu.Unlock()
		ids++
		return fmt.Sprintf("sig-%d", ids)
	}

	mem := cache.NewMemoryCache(cache.DefaultTTL, clock.Now)
	svc := NewSignalService(
		tracer,
		market,
		signal.NewAssembler(indicator.NewEngine(indicator.DefaultConfig()), clock.Now, newID),
		repository.NewSignalRepository(tracer),
		mem,
		retry.NewController(tracer, mem, retry.DefaultPolicy(), nil),
		Options{
			AssetIDs:     []string{"bitcoin", "ethereum", "solana"},
			PageSize:     50,
			OHLCDays:     14,
			Timeframe:    domain.Timeframe4h,
			FetchVolumes: true,
			Now:          clock.Now,
			NewID:        newID,
		},
	)
	return &fixture{svc: svc, market: market, cache: mem, clock: clock}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestListIsIdempotentWithinTTL(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	ctx := context.Background()

	first, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 signals, got %d", len(first))
	}
	calls := f.market.calls()

	f.clock.Advance(29 * time.Second)
	second, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.market.calls() != calls {
		t.Fatalf("expected no upstream calls within TTL, got %d more", f.market.calls()-calls)
	}
	if mustJSON(t, first) != mustJSON(t, second) {
		t.Fatal("cached list differs from the first result")
	}

	f.clock.Advance(2 * time.Second)
	if _, err := f.svc.List(ctx, ListOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.market.calls() != calls+1 {
		t.Fatalf("expected a refresh after TTL, got %d calls", f.market.calls())
	}
}

func TestListSortsAndLimits(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	got, err := f.svc.List(context.Background(), ListOptions{Sort: "-strength", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(got))
	}
	if got[0].Symbol != "SOLUSDT" || got[1].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected order: %s, %s", got[0].Symbol, got[1].Symbol)
	}

	asc, err := f.svc.List(context.Background(), ListOptions{Sort: "symbol"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asc[0].Symbol != "BTCUSDT" || asc[2].Symbol != "SOLUSDT" {
		t.Fatalf("unexpected symbol order: %+v", asc)
	}
}

func TestListRejectsBadOptions(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	for _, opts := range []ListOptions{{Sort: "nope"}, {Limit: -1}, {Limit: MaxListLimit + 1}} {
		if _, err := f.svc.List(context.Background(), opts); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%+v: expected validation error, got %v", opts, err)
		}
	}
	if f.market.calls() != 0 {
		t.Fatal("invalid options must not reach upstream")
	}
}

func TestListSkipsBrokenAssets(t *testing.T) {
	snaps := defaultSnapshots()
	snaps[1].CurrentPrice = math.NaN()
	market := &stubMarket{
		snapshots: snaps,
		ohlcErr: map[string]error{
			"solana": &domain.InsufficientDataError{AssetID: "solana", Got: 13, Min: 14},
		},
	}
	f := newFixture(t, market)

	got, err := f.svc.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "BTCUSDT" {
		t.Fatalf("expected only BTC, got %+v", got)
	}
}

func TestListSkipsAssetWithBrokenCandles(t *testing.T) {
	market := &stubMarket{
		ohlcErr: map[string]error{
			"ethereum": &domain.DataIntegrityError{AssetID: "ethereum", Field: "close", Value: math.NaN()},
		},
	}
	f := newFixture(t, market)

	got, err := f.svc.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("broken candles should skip the asset, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected BTC and SOL only, got %+v", got)
	}
	for _, sig := range got {
		if sig.Symbol == "ETHUSDT" {
			t.Fatalf("ethereum should have been skipped: %+v", sig)
		}
	}
}

func TestListAttachesVolumesAndToleratesEnrichmentFailure(t *testing.T) {
	market := &stubMarket{volumeErr: &domain.UpstreamError{Op: "coins.market_chart", StatusCode: 500}}
	f := newFixture(t, market)
	got, err := f.svc.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("volume failures must not abort the pass: %v", err)
	}
	if len(got) != 3 || market.volumeCalls != 3 {
		t.Fatalf("unexpected result: %d signals, %d volume calls", len(got), market.volumeCalls)
	}
}

func TestListRetriesRateLimits(t *testing.T) {
	rl := &domain.RateLimitError{Op: "coins.markets"}
	market := &stubMarket{snapshotErrs: []error{rl, rl, rl}}
	f := newFixture(t, market)

	got, err := f.svc.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("expected fresh data, got %v", err)
	}
	if len(got) != 3 || market.calls() != 4 {
		t.Fatalf("expected 3 signals after 4 attempts, got %d after %d", len(got), market.calls())
	}
}

func TestListFallsBackToStaleCache(t *testing.T) {
	market := &stubMarket{}
	f := newFixture(t, market)
	ctx := context.Background()

	first, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rl := &domain.RateLimitError{Op: "coins.markets"}
	market.mu.Lock()
	market.snapshotErrs = []error{nil, rl, rl, rl, rl, rl, rl}
	market.mu.Unlock()
	f.clock.Advance(time.Minute)

	got, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if mustJSON(t, got) != mustJSON(t, first) {
		t.Fatal("expected the previously cached list")
	}
}

func TestListRateLimitedWithoutCache(t *testing.T) {
	rl := &domain.RateLimitError{Op: "coins.markets"}
	f := newFixture(t, &stubMarket{snapshotErrs: []error{rl, rl, rl, rl, rl, rl}})
	_, err := f.svc.List(context.Background(), ListOptions{})
	var rle *domain.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
}

func TestListCollapsesConcurrentMisses(t *testing.T) {
	market := &stubMarket{delay: 50 * time.Millisecond}
	f := newFixture(t, market)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.List(context.Background(), ListOptions{}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	if market.calls() != 1 {
		t.Fatalf("expected one pipeline pass, got %d", market.calls())
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	ctx := context.Background()
	listed, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	target := listed[0]

	cancelled := domain.SignalCancelled
	if _, err := f.svc.Update(ctx, target.ID, SignalPatch{Status: &cancelled}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := f.svc.GetByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.SignalCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("expected updated %s after created %s", got.UpdatedAt, got.CreatedAt)
	}

	relisted, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, s := range relisted {
		if s.ID == target.ID {
			found = true
			if s.Status != domain.SignalCancelled {
				t.Fatal("update did not invalidate the cached list")
			}
		}
	}
	if !found {
		t.Fatal("cancelled signal must stay listed")
	}
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	ctx := context.Background()
	listed, _ := f.svc.List(ctx, ListOptions{})
	id := listed[0].ID

	bad := 0
	if _, err := f.svc.Update(ctx, id, SignalPatch{Strength: &bad}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	hold := domain.SignalHold
	if _, err := f.svc.Update(ctx, id, SignalPatch{SignalType: &hold}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("generated signals cannot become HOLD, got %v", err)
	}

	got, _ := f.svc.GetByID(ctx, id)
	if got.Strength != listed[0].Strength || got.SignalType != listed[0].SignalType {
		t.Fatalf("invalid patch leaked into the store: %+v", got)
	}
	if _, err := f.svc.Update(ctx, "missing", SignalPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateManualSignal(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	ctx := context.Background()

	created, err := f.svc.Create(ctx, SignalInput{
		Symbol:     " adausdt ",
		SignalType: "hold",
		Strength:   60,
		EntryPrice: 0.45,
		Timeframe:  domain.Timeframe1d,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Symbol != "ADAUSDT" || created.SignalType != domain.SignalHold || created.Source != domain.SourceManual {
		t.Fatalf("unexpected signal: %+v", created)
	}
	if created.Status != domain.SignalActive || created.ID == "" {
		t.Fatalf("unexpected status/id: %+v", created)
	}

	listed, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 4 {
		t.Fatalf("expected generated plus manual signals, got %d", len(listed))
	}

	_, err = f.svc.Create(ctx, SignalInput{Symbol: "X", SignalType: "BUY", Strength: 101, EntryPrice: 0, Timeframe: "2h"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) < 3 {
		t.Fatalf("expected validation error with several fields, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	ctx := context.Background()
	listed, _ := f.svc.List(ctx, ListOptions{})

	ok, err := f.svc.Cancel(ctx, listed[0].ID)
	if err != nil || !ok {
		t.Fatalf("expected first cancel to succeed, got %v %v", ok, err)
	}
	ok, err = f.svc.Cancel(ctx, listed[0].ID)
	if err != nil || ok {
		t.Fatalf("expected second cancel to report false, got %v %v", ok, err)
	}
	if _, err := f.svc.Cancel(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFilter(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	got, err := f.svc.Filter(context.Background(), ListOptions{}, domain.SignalFilter{SignalType: domain.SignalSell})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "ETHUSDT" {
		t.Fatalf("expected only ETH sell, got %+v", got)
	}
}

func TestFilterAppliesBeforeLimit(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	ctx := context.Background()

	listed, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ethID string
	for _, sig := range listed {
		if sig.Symbol == "ETHUSDT" {
			ethID = sig.ID
		}
	}
	if ok, err := f.svc.Cancel(ctx, ethID); err != nil || !ok {
		t.Fatalf("cancel: %v %v", ok, err)
	}

	got, err := f.svc.Filter(ctx, ListOptions{Sort: "symbol", Limit: 1}, domain.SignalFilter{Status: domain.SignalCancelled})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != ethID {
		t.Fatalf("expected the cancelled ETH signal past the first page, got %+v", got)
	}

	if _, err := f.svc.Filter(ctx, ListOptions{Limit: -1}, domain.SignalFilter{Status: domain.SignalCancelled}); err == nil {
		t.Fatal("expected limit validation error")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	for _, id := range []string{"", "nope"} {
		if _, err := f.svc.GetByID(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("%q: expected not found, got %v", id, err)
		}
	}
}

func TestSummarize(t *testing.T) {
	signals := []domain.Signal{
		{Symbol: "BTCUSDT", SignalType: domain.SignalBuy, Strength: 90, Timeframe: domain.Timeframe4h, Status: domain.SignalActive},
		{Symbol: "BTCUSDT", SignalType: domain.SignalSell, Strength: 70, Timeframe: domain.Timeframe1h, Status: domain.SignalCancelled},
		{Symbol: "ETHUSDT", SignalType: domain.SignalHold, Strength: 50, Timeframe: domain.Timeframe4h, Status: domain.SignalActive},
	}
	a := Summarize(signals)
	if a.Total != 3 || a.Buy != 1 || a.Sell != 1 || a.Hold != 1 || a.HighStrength != 1 {
		t.Fatalf("unexpected counts: %+v", a)
	}
	if a.Active != 2 || a.Cancelled != 1 {
		t.Fatalf("unexpected status counts: %+v", a)
	}
	if a.AverageStrength != 70 {
		t.Fatalf("expected average 70, got %v", a.AverageStrength)
	}
	if len(a.Symbols) != 2 || a.Symbols[0].Symbol != "BTCUSDT" || a.Symbols[0].AverageStrength != 80 {
		t.Fatalf("unexpected symbol ranking: %+v", a.Symbols)
	}
	if a.Timeframes[domain.Timeframe4h] != 2 {
		t.Fatalf("unexpected timeframe counts: %+v", a.Timeframes)
	}

	empty := Summarize(nil)
	if empty.Total != 0 || empty.AverageStrength != 0 || empty.Symbols == nil {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}

func TestMarketOverview(t *testing.T) {
	snaps := defaultSnapshots()
	snaps[2].MarketCap = math.NaN()
	f := newFixture(t, &stubMarket{snapshots: snaps})

	got, err := f.svc.MarketOverview(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalMarketCap != 8e11+3e11 || got.Gainers != 2 || got.Losers != 1 {
		t.Fatalf("unexpected overview: %+v", got)
	}
	if _, err := json.Marshal(got); err != nil {
		t.Fatalf("overview must be encodable: %v", err)
	}
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	ctx := context.Background()

	if _, err := f.svc.List(ctx, ListOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	manual, err := f.svc.Create(ctx, SignalInput{Symbol: "ADAUSDT", SignalType: "HOLD", Strength: 10, EntryPrice: 1, Timeframe: domain.Timeframe1d})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := f.svc.ExpireStale(ctx)
	if err != nil || n != 0 {
		t.Fatalf("nothing should expire yet, got %d %v", n, err)
	}

	f.clock.Advance(25 * time.Hour)
	n, err = f.svc.ExpireStale(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 expired generated signals, got %d %v", n, err)
	}

	got, err := f.svc.GetByID(ctx, manual.ID)
	if err != nil || got.Status != domain.SignalActive {
		t.Fatalf("manual signal should stay active, got %+v %v", got, err)
	}

	listed, err := f.svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 7 {
		t.Fatalf("expected 3 cancelled, 3 fresh and 1 manual signal, got %d", len(listed))
	}
	cancelled := 0
	for _, sig := range listed {
		if sig.Status == domain.SignalCancelled {
			cancelled++
		}
	}
	if cancelled != 3 {
		t.Fatalf("expected 3 cancelled signals, got %d", cancelled)
	}
}

type pingingMarket struct {
	stubMarket
	err error
}

func (p *pingingMarket) Ping(ctx context.Context) error { return p.err }

func TestPing(t *testing.T) {
	f := newFixture(t, &stubMarket{})
	if err := f.svc.Ping(context.Background()); err != nil {
		t.Fatalf("market without a probe should be ready, got %v", err)
	}

	down := &pingingMarket{err: &domain.UpstreamError{Op: "ping", StatusCode: 503}}
	down.snapshots = defaultSnapshots()
	svc := NewSignalService(
		trace.NewNoopTracerProvider().Tracer("test"),
		down,
		f.svc.assembler,
		repository.NewSignalRepository(trace.NewNoopTracerProvider().Tracer("test")),
		f.cache,
		retry.NewController(trace.NewNoopTracerProvider().Tracer("test"), f.cache, retry.DefaultPolicy(), nil),
		Options{AssetIDs: []string{"bitcoin"}},
	)
	if err := svc.Ping(context.Background()); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
