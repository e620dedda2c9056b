package domain

import (
	"math"
	"strings"
	"time"
)

// MinOHLCPoints is the shortest OHLC series accepted for indicator computation.
const MinOHLCPoints = 14

type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

func (t SignalType) IsValid() bool {
	switch t {
	case SignalBuy, SignalSell, SignalHold:
		return true
	}
	return false
}

type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

var SupportedTimeframes = []Timeframe{
	Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d,
}

func (t Timeframe) IsValid() bool {
	for _, tf := range SupportedTimeframes {
		if t == tf {
			return true
		}
	}
	return false
}

type SignalStatus string

const (
	SignalActive    SignalStatus = "active"
	SignalCancelled SignalStatus = "cancelled"
)

func (s SignalStatus) IsValid() bool {
	return s == SignalActive || s == SignalCancelled
}

// SignalSource records whether a signal came out of the fetch pipeline or was
// created by hand. Only manual signals may be HOLD.
type SignalSource string

const (
	SourceGenerated SignalSource = "generated"
	SourceManual    SignalSource = "manual"
)

// CoinSnapshot is one asset's market state as returned by /coins/markets.
type CoinSnapshot struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	CurrentPrice             float64 `json:"current_price"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	TotalVolume              float64 `json:"total_volume"`
	MarketCap                float64 `json:"market_cap"`
}

// TradingSymbol is the display pair used on signals, e.g. "btc" -> "BTCUSDT".
func (c CoinSnapshot) TradingSymbol() string {
	return strings.ToUpper(strings.TrimSpace(c.Symbol)) + "USDT"
}

// NormalizeSymbol accepts a bare asset symbol or a USDT pair and returns the
// pair. Empty stays empty so it can mean "any symbol" in a filter.
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || strings.HasSuffix(symbol, "USDT") {
		return symbol
	}
	return symbol + "USDT"
}

type OHLCPoint struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// OHLCSeries is ordered chronologically ascending.
type OHLCSeries struct {
	AssetID string      `json:"asset_id"`
	Points  []OHLCPoint `json:"points"`
}

func (s OHLCSeries) Len() int { return len(s.Points) }

func (s OHLCSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

func (s OHLCSeries) Highs() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.High
	}
	return out
}

func (s OHLCSeries) Lows() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Low
	}
	return out
}

func (s OHLCSeries) Volumes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Volume
	}
	return out
}

type Signal struct {
	ID              string            `json:"id"`
	Symbol          string            `json:"symbol" validate:"required"`
	SignalType      SignalType        `json:"signal_type" validate:"required,oneof=BUY SELL HOLD"`
	Strength        int               `json:"strength" validate:"min=1,max=100"`
	EntryPrice      float64           `json:"entry_price" validate:"gt=0"`
	TargetPrice     float64           `json:"target_price" validate:"gte=0"`
	StopLoss        float64           `json:"stop_loss" validate:"gte=0"`
	Timeframe       Timeframe         `json:"timeframe" validate:"required,oneof=1m 5m 15m 1h 4h 1d"`
	Indicators      []IndicatorResult `json:"indicators"`
	OverallSignal   Status            `json:"overall_signal,omitempty"`
	MarketCap       float64           `json:"market_cap" validate:"gte=0"`
	Volume24h       float64           `json:"volume_24h" validate:"gte=0"`
	PriceChange24h  float64           `json:"price_change_24h"`
	ConfidenceScore float64           `json:"confidence_score" validate:"gte=0,lte=1"`
	Status          SignalStatus      `json:"status" validate:"required,oneof=active cancelled"`
	Source          SignalSource      `json:"source"`
	CreatedAt       time.Time         `json:"created_date"`
	UpdatedAt       time.Time         `json:"updated_date"`
}

const signalExpiry = 24 * time.Hour

// IsExpired reports whether the signal is older than a day.
func (s Signal) IsExpired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > signalExpiry
}

// Clone returns a copy that shares no slices with s.
func (s Signal) Clone() Signal {
	if s.Indicators != nil {
		s.Indicators = append([]IndicatorResult(nil), s.Indicators...)
	}
	return s
}

func CloneSignals(in []Signal) []Signal {
	if in == nil {
		return nil
	}
	out := make([]Signal, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// SignalFilter narrows a signal list. Zero values mean "no constraint".
type SignalFilter struct {
	SignalType  SignalType
	MinStrength int
	Timeframe   Timeframe
	Status      SignalStatus
	Symbol      string
}

func (f SignalFilter) Match(s Signal) bool {
	if f.SignalType != "" && s.SignalType != f.SignalType {
		return false
	}
	if f.MinStrength > 0 && s.Strength < f.MinStrength {
		return false
	}
	if f.Timeframe != "" && s.Timeframe != f.Timeframe {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Symbol != "" && !strings.EqualFold(s.Symbol, f.Symbol) {
		return false
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
