package signal

import (
	"fmt"
	"math"
	"time"

	"coinsignal/internal/domain"
	"coinsignal/internal/indicator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	baseStrength   = 50
	maxStrength    = 100
	minStrength    = 1
	targetPct      = 0.05
	stopPct        = 0.03
	confidenceSpan = 10.0

	pricePlaces      = 8
	confidencePlaces = 4
)

// IndicatorEngine computes indicator results for one series.
type IndicatorEngine interface {
	Compute(series domain.OHLCSeries) []domain.IndicatorResult
}

type Assembler struct {
	engine IndicatorEngine
	now    func() time.Time
	newID  func() string
}

func NewAssembler(engine IndicatorEngine, now func() time.Time, newID func() string) *Assembler {
	if engine == nil {
		engine = indicator.NewEngine(indicator.DefaultConfig())
	}
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Assembler{engine: engine, now: now, newID: newID}
}

// Assemble builds one generated signal from a market snapshot and its OHLC
// history. A positive 24h change is BUY; anything else, zero included, is SELL.
// Strength is |change|+50 capped at 100, a placeholder heuristic rather than a
// validated trading model.
func (a *Assembler) Assemble(snapshot domain.CoinSnapshot, series domain.OHLCSeries, timeframe domain.Timeframe) (domain.Signal, error) {
	if err := checkSnapshot(snapshot); err != nil {
		return domain.Signal{}, err
	}
	if !timeframe.IsValid() {
		return domain.Signal{}, &domain.ValidationError{Fields: []domain.FieldError{{
			Field:   "timeframe",
			Message: fmt.Sprintf("timeframe %q is not supported", timeframe),
		}}}
	}

	change := decimal.NewFromFloat(snapshot.PriceChangePercentage24h)
	entry := decimal.NewFromFloat(snapshot.CurrentPrice)

	signalType := domain.SignalSell
	targetFactor := decimal.NewFromFloat(1 - targetPct)
	stopFactor := decimal.NewFromFloat(1 + stopPct)
	if change.IsPositive() {
		signalType = domain.SignalBuy
		targetFactor = decimal.NewFromFloat(1 + targetPct)
		stopFactor = decimal.NewFromFloat(1 - stopPct)
	}

	results := a.engine.Compute(series)
	now := a.now().UTC()
	sig := domain.Signal{
		ID:              a.newID(),
		Symbol:          snapshot.TradingSymbol(),
		SignalType:      signalType,
		Strength:        strengthFor(change),
		EntryPrice:      roundFloat(entry, pricePlaces),
		TargetPrice:     roundFloat(entry.Mul(targetFactor), pricePlaces),
		StopLoss:        roundFloat(entry.Mul(stopFactor), pricePlaces),
		Timeframe:       timeframe,
		Indicators:      results,
		OverallSignal:   indicator.Overall(results),
		MarketCap:       snapshot.MarketCap,
		Volume24h:       snapshot.TotalVolume,
		PriceChange24h:  snapshot.PriceChangePercentage24h,
		ConfidenceScore: confidenceFor(change),
		Status:          domain.SignalActive,
		Source:          domain.SourceGenerated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := sig.Validate(); err != nil {
		return domain.Signal{}, err
	}
	return sig, nil
}

// strengthFor is min(|change|+50, 100) rounded half away from zero.
func strengthFor(change decimal.Decimal) int {
	s := change.Abs().Add(decimal.NewFromInt(baseStrength))
	if s.GreaterThan(decimal.NewFromInt(maxStrength)) {
		s = decimal.NewFromInt(maxStrength)
	}
	v := int(s.Round(0).IntPart())
	if v < minStrength {
		return minStrength
	}
	return v
}

func confidenceFor(change decimal.Decimal) float64 {
	c := change.Abs().Div(decimal.NewFromFloat(confidenceSpan))
	if c.GreaterThan(decimal.NewFromInt(1)) {
		c = decimal.NewFromInt(1)
	}
	return roundFloat(c, confidencePlaces)
}

func roundFloat(d decimal.Decimal, places int32) float64 {
	f, _ := d.Round(places).Float64()
	return f
}

func checkSnapshot(s domain.CoinSnapshot) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"current_price", s.CurrentPrice},
		{"price_change_percentage_24h", s.PriceChangePercentage24h},
		{"total_volume", s.TotalVolume},
		{"market_cap", s.MarketCap},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &domain.DataIntegrityError{AssetID: s.ID, Field: f.name, Value: f.value}
		}
	}
	if s.CurrentPrice <= 0 {
		return &domain.DataIntegrityError{AssetID: s.ID, Field: "current_price", Value: s.CurrentPrice}
	}
	if s.Symbol == "" {
		return &domain.DataIntegrityError{AssetID: s.ID, Field: "symbol", Value: math.NaN()}
	}
	return nil
}
