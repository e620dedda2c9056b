package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coinsignal/internal/cache"
	"coinsignal/internal/domain"
	"coinsignal/internal/metrics"
	"coinsignal/internal/provider"
	"coinsignal/internal/retry"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type MarketDataClient interface {
	FetchMarketSnapshot(ctx context.Context, ids []string, pageSize int) ([]domain.CoinSnapshot, error)
	FetchOHLC(ctx context.Context, assetID string, lookbackDays int) (domain.OHLCSeries, error)
	FetchVolumes(ctx context.Context, assetID string, lookbackDays int) ([]provider.VolumeSample, error)
}

type SignalAssembler interface {
	Assemble(snapshot domain.CoinSnapshot, series domain.OHLCSeries, timeframe domain.Timeframe) (domain.Signal, error)
}

type SignalStore interface {
	SaveGenerated(ctx context.Context, signals []domain.Signal) ([]domain.Signal, error)
	Insert(ctx context.Context, s domain.Signal) (domain.Signal, error)
	Get(ctx context.Context, id string) (domain.Signal, error)
	Update(ctx context.Context, id string, fn func(*domain.Signal) error) (domain.Signal, error)
	List(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error)
}

type Retrier interface {
	Run(ctx context.Context, key string, attempt retry.Attempt) ([]domain.Signal, error)
}

type Options struct {
	AssetIDs     []string
	PageSize     int
	OHLCDays     int
	Timeframe    domain.Timeframe
	FetchVolumes bool

	Now   func() time.Time
	NewID func() string
}

type SignalService struct {
	tracer    trace.Tracer
	market    MarketDataClient
	assembler SignalAssembler
	store     SignalStore
	cache     cache.Cache
	retrier   Retrier
	opts      Options

	group singleflight.Group
}

func NewSignalService(
	tracer trace.Tracer,
	market MarketDataClient,
	assembler SignalAssembler,
	store SignalStore,
	resultCache cache.Cache,
	retrier Retrier,
	opts Options,
) *SignalService {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultListLimit
	}
	if opts.OHLCDays <= 0 {
		opts.OHLCDays = 14
	}
	if opts.Timeframe == "" {
		opts.Timeframe = domain.Timeframe4h
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &SignalService{
		tracer:    tracer,
		market:    market,
		assembler: assembler,
		store:     store,
		cache:     resultCache,
		retrier:   retrier,
		opts:      opts,
	}
}

type ListOptions struct {
	Sort  string
	Limit int
}

func (o ListOptions) normalized() (ListOptions, error) {
	o.Sort = strings.TrimSpace(o.Sort)
	if o.Sort == "" {
		o.Sort = DefaultSort
	}
	if _, _, err := parseSort(o.Sort); err != nil {
		return o, err
	}
	switch {
	case o.Limit == 0:
		o.Limit = DefaultListLimit
	case o.Limit < 0 || o.Limit > MaxListLimit:
		return o, &domain.ValidationError{Fields: []domain.FieldError{{
			Field:   "limit",
			Message: fmt.Sprintf("limit must be between 1 and %d", MaxListLimit),
		}}}
	}
	return o, nil
}

// List returns signals sorted and limited per opts. A fresh cached list is
// returned as is; otherwise one pipeline pass runs under the retry controller,
// shared by concurrent callers asking for the same key.
func (s *SignalService) List(ctx context.Context, opts ListOptions) ([]domain.Signal, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.list")
	defer span.End()

	if s.market == nil || s.assembler == nil || s.store == nil || s.cache == nil || s.retrier == nil {
		return nil, fmt.Errorf("signal service is not fully initialized")
	}

	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	key := cache.Key(opts.Sort, opts.Limit)
	span.SetAttributes(attribute.String("cache.key", key))

	entry, err := s.cache.Get(ctx, key)
	switch {
	case err == nil && s.cache.IsValid(entry):
		metrics.ObserveCache("hit")
		return entry.Signals, nil
	case err == nil:
		metrics.ObserveCache("stale")
	case errors.Is(err, cache.ErrCacheMiss):
		metrics.ObserveCache("miss")
	default:
		metrics.ObserveCache("error")
		log.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.retrier.Run(ctx, key, func(ctx context.Context) ([]domain.Signal, error) {
			signals, err := s.runPipeline(ctx, opts)
			if err != nil {
				return nil, err
			}
			if perr := s.cache.Put(ctx, key, signals); perr != nil {
				log.Warn().Err(perr).Str("key", key).Msg("cache put failed")
			}
			return signals, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return domain.CloneSignals(v.([]domain.Signal)), nil
}

// runPipeline is one fetch-and-assemble pass. Assets with too little history
// or broken numbers are skipped; anything else aborts the pass.
func (s *SignalService) runPipeline(ctx context.Context, opts ListOptions) ([]domain.Signal, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.pipeline")
	defer span.End()

	snapshots, err := s.market.FetchMarketSnapshot(ctx, s.opts.AssetIDs, s.opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("fetch market snapshot: %w", err)
	}

	generated := make([]domain.Signal, 0, len(snapshots))
	for _, snap := range snapshots {
		series, err := s.market.FetchOHLC(ctx, snap.ID, s.opts.OHLCDays)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInsufficientData):
				skipAsset(snap.ID, "insufficient_data", err)
				continue
			case errors.Is(err, domain.ErrDataIntegrity):
				skipAsset(snap.ID, "data_integrity", err)
				continue
			}
			return nil, fmt.Errorf("fetch ohlc for %s: %w", snap.ID, err)
		}

		if s.opts.FetchVolumes {
			samples, err := s.market.FetchVolumes(ctx, snap.ID, s.opts.OHLCDays)
			switch {
			case err == nil:
				series = provider.AttachVolumes(series, samples)
			case errors.Is(err, domain.ErrRateLimited) || ctx.Err() != nil:
				return nil, fmt.Errorf("fetch volumes for %s: %w", snap.ID, err)
			default:
				log.Warn().Err(err).Str("asset", snap.ID).Msg("volume enrichment failed, continuing without volumes")
			}
		}

		sig, err := s.assembler.Assemble(snap, series, s.opts.Timeframe)
		if err != nil {
			if errors.Is(err, domain.ErrDataIntegrity) {
				skipAsset(snap.ID, "data_integrity", err)
				continue
			}
			return nil, fmt.Errorf("assemble %s: %w", snap.ID, err)
		}
		generated = append(generated, sig)
	}

	if _, err := s.store.SaveGenerated(ctx, generated); err != nil {
		return nil, fmt.Errorf("save generated signals: %w", err)
	}
	all, err := s.store.List(ctx, domain.SignalFilter{})
	if err != nil {
		return nil, fmt.Errorf("list stored signals: %w", err)
	}

	if err := sortSignals(all, opts.Sort); err != nil {
		return nil, err
	}
	if len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	span.SetAttributes(attribute.Int("signals.generated", len(generated)), attribute.Int("signals.returned", len(all)))
	return all, nil
}

func skipAsset(assetID, reason string, err error) {
	metrics.ObserveSkippedAsset(reason)
	log.Warn().Err(err).Str("asset", assetID).Str("reason", reason).Msg("skipping asset")
}

// Filter narrows every stored signal before sorting and limiting, so the limit
// counts matches. List runs first so a cold or stale cache still triggers a
// pipeline pass.
func (s *SignalService) Filter(ctx context.Context, opts ListOptions, filter domain.SignalFilter) ([]domain.Signal, error) {
	signals, err := s.List(ctx, opts)
	if err != nil || filter == (domain.SignalFilter{}) {
		return signals, err
	}

	ctx, span := s.tracer.Start(ctx, "signal-service.filter")
	defer span.End()

	opts, err = opts.normalized()
	if err != nil {
		return nil, err
	}
	matched, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list stored signals: %w", err)
	}
	if err := sortSignals(matched, opts.Sort); err != nil {
		return nil, err
	}
	if len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	span.SetAttributes(attribute.Int("signals.matched", len(matched)))
	return matched, nil
}

func (s *SignalService) GetByID(ctx context.Context, id string) (domain.Signal, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.get-by-id")
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Signal{}, fmt.Errorf("signal id is required: %w", domain.ErrNotFound)
	}
	return s.store.Get(ctx, id)
}

// SignalInput is the payload for a manually created signal.
type SignalInput struct {
	Symbol          string                   `json:"symbol"`
	SignalType      domain.SignalType        `json:"signal_type"`
	Strength        int                      `json:"strength"`
	EntryPrice      float64                  `json:"entry_price"`
	TargetPrice     float64                  `json:"target_price"`
	StopLoss        float64                  `json:"stop_loss"`
	Timeframe       domain.Timeframe         `json:"timeframe"`
	Indicators      []domain.IndicatorResult `json:"indicators"`
	MarketCap       float64                  `json:"market_cap"`
	Volume24h       float64                  `json:"volume_24h"`
	PriceChange24h  float64                  `json:"price_change_24h"`
	ConfidenceScore float64                  `json:"confidence_score"`
}

// Create stores a manual signal. It bypasses the fetch pipeline and is the
// only way to get a HOLD signal.
func (s *SignalService) Create(ctx context.Context, in SignalInput) (domain.Signal, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.create")
	defer span.End()

	now := s.opts.Now().UTC()
	sig := domain.Signal{
		ID:              s.opts.NewID(),
		Symbol:          strings.ToUpper(strings.TrimSpace(in.Symbol)),
		SignalType:      domain.SignalType(strings.ToUpper(string(in.SignalType))),
		Strength:        in.Strength,
		EntryPrice:      in.EntryPrice,
		TargetPrice:     in.TargetPrice,
		StopLoss:        in.StopLoss,
		Timeframe:       in.Timeframe,
		Indicators:      in.Indicators,
		MarketCap:       in.MarketCap,
		Volume24h:       in.Volume24h,
		PriceChange24h:  in.PriceChange24h,
		ConfidenceScore: in.ConfidenceScore,
		Status:          domain.SignalActive,
		Source:          domain.SourceManual,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if sig.Indicators == nil {
		sig.Indicators = []domain.IndicatorResult{}
	}
	if err := sig.Validate(); err != nil {
		return domain.Signal{}, err
	}

	created, err := s.store.Insert(ctx, sig)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("insert signal: %w", err)
	}
	s.invalidate(ctx)
	return created, nil
}

// SignalPatch holds the fields an update may change; nil means unchanged.
type SignalPatch struct {
	SignalType      *domain.SignalType        `json:"signal_type,omitempty"`
	Strength        *int                      `json:"strength,omitempty"`
	EntryPrice      *float64                  `json:"entry_price,omitempty"`
	TargetPrice     *float64                  `json:"target_price,omitempty"`
	StopLoss        *float64                  `json:"stop_loss,omitempty"`
	Timeframe       *domain.Timeframe         `json:"timeframe,omitempty"`
	Indicators      *[]domain.IndicatorResult `json:"indicators,omitempty"`
	ConfidenceScore *float64                  `json:"confidence_score,omitempty"`
	Status          *domain.SignalStatus      `json:"status,omitempty"`
}

func (p SignalPatch) apply(sig *domain.Signal) {
	if p.SignalType != nil {
		sig.SignalType = domain.SignalType(strings.ToUpper(string(*p.SignalType)))
	}
	if p.Strength != nil {
		sig.Strength = *p.Strength
	}
	if p.EntryPrice != nil {
		sig.EntryPrice = *p.EntryPrice
	}
	if p.TargetPrice != nil {
		sig.TargetPrice = *p.TargetPrice
	}
	if p.StopLoss != nil {
		sig.StopLoss = *p.StopLoss
	}
	if p.Timeframe != nil {
		sig.Timeframe = *p.Timeframe
	}
	if p.Indicators != nil {
		sig.Indicators = append([]domain.IndicatorResult(nil), (*p.Indicators)...)
	}
	if p.ConfidenceScore != nil {
		sig.ConfidenceScore = *p.ConfidenceScore
	}
	if p.Status != nil {
		sig.Status = *p.Status
	}
}

// Update merges patch into the stored signal. The result is validated before
// it is stored; an invalid patch changes nothing.
func (s *SignalService) Update(ctx context.Context, id string, patch SignalPatch) (domain.Signal, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.update")
	defer span.End()

	updated, err := s.store.Update(ctx, id, func(sig *domain.Signal) error {
		patch.apply(sig)
		sig.UpdatedAt = s.touch(*sig)
		return sig.Validate()
	})
	if err != nil {
		return domain.Signal{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Cancel marks the signal cancelled. It reports false when the signal was
// already cancelled.
func (s *SignalService) Cancel(ctx context.Context, id string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.cancel")
	defer span.End()

	changed := false
	_, err := s.store.Update(ctx, id, func(sig *domain.Signal) error {
		if sig.Status == domain.SignalCancelled {
			return nil
		}
		changed = true
		sig.Status = domain.SignalCancelled
		sig.UpdatedAt = s.touch(*sig)
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.invalidate(ctx)
	}
	return changed, nil
}

// touch returns an update timestamp strictly after both timestamps on sig.
func (s *SignalService) touch(sig domain.Signal) time.Time {
	now := s.opts.Now().UTC()
	floor := sig.CreatedAt
	if sig.UpdatedAt.After(floor) {
		floor = sig.UpdatedAt
	}
	if !now.After(floor) {
		now = floor.Add(time.Millisecond)
	}
	return now
}

func (s *SignalService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("cache invalidation failed")
	}
}

// ExpireStale cancels active generated signals older than a day so the next
// pass issues fresh ones. Manual signals are left alone.
func (s *SignalService) ExpireStale(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.expire-stale")
	defer span.End()

	if s.store == nil {
		return 0, fmt.Errorf("signal service is not fully initialized")
	}
	active, err := s.store.List(ctx, domain.SignalFilter{Status: domain.SignalActive})
	if err != nil {
		return 0, fmt.Errorf("list active signals: %w", err)
	}

	now := s.opts.Now()
	expired := 0
	for _, sig := range active {
		if sig.Source != domain.SourceGenerated || !sig.IsExpired(now) {
			continue
		}
		changed := false
		_, err := s.store.Update(ctx, sig.ID, func(cur *domain.Signal) error {
			if cur.Status == domain.SignalCancelled {
				return nil
			}
			changed = true
			cur.Status = domain.SignalCancelled
			cur.UpdatedAt = s.touch(*cur)
			return nil
		})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return expired, fmt.Errorf("expire signal %s: %w", sig.ID, err)
		}
		if changed {
			expired++
		}
	}
	if expired > 0 {
		s.invalidate(ctx)
	}
	span.SetAttributes(attribute.Int("signals.expired", expired))
	return expired, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the market data provider when it supports a reachability probe.
func (s *SignalService) Ping(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "signal-service.ping")
	defer span.End()

	p, ok := s.market.(pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}
