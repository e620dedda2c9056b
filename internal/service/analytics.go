package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"coinsignal/internal/domain"
)

const highStrength = 80

type SymbolStats struct {
	Symbol          string  `json:"symbol"`
	Count           int     `json:"count"`
	AverageStrength float64 `json:"average_strength"`
}

type Analytics struct {
	Total           int                      `json:"total"`
	Buy             int                      `json:"buy"`
	Sell            int                      `json:"sell"`
	Hold            int                      `json:"hold"`
	Active          int                      `json:"active"`
	Cancelled       int                      `json:"cancelled"`
	HighStrength    int                      `json:"high_strength"`
	AverageStrength float64                  `json:"average_strength"`
	Symbols         []SymbolStats            `json:"symbols"`
	Timeframes      map[domain.Timeframe]int `json:"timeframes"`
}

// Analytics summarizes the current signal list.
func (s *SignalService) Analytics(ctx context.Context, opts ListOptions) (Analytics, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.analytics")
	defer span.End()

	signals, err := s.List(ctx, opts)
	if err != nil {
		return Analytics{}, err
	}
	return Summarize(signals), nil
}

func Summarize(signals []domain.Signal) Analytics {
	out := Analytics{
		Total:      len(signals),
		Symbols:    []SymbolStats{},
		Timeframes: map[domain.Timeframe]int{},
	}
	if len(signals) == 0 {
		return out
	}

	type acc struct {
		count int
		sum   int
	}
	bySymbol := map[string]*acc{}
	total := 0
	for _, sig := range signals {
		switch sig.SignalType {
		case domain.SignalBuy:
			out.Buy++
		case domain.SignalSell:
			out.Sell++
		case domain.SignalHold:
			out.Hold++
		}
		if sig.Status == domain.SignalCancelled {
			out.Cancelled++
		} else {
			out.Active++
		}
		if sig.Strength >= highStrength {
			out.HighStrength++
		}
		total += sig.Strength
		out.Timeframes[sig.Timeframe]++

		a, ok := bySymbol[sig.Symbol]
		if !ok {
			a = &acc{}
			bySymbol[sig.Symbol] = a
		}
		a.count++
		a.sum += sig.Strength
	}
	out.AverageStrength = float64(total) / float64(len(signals))

	for symbol, a := range bySymbol {
		out.Symbols = append(out.Symbols, SymbolStats{
			Symbol:          symbol,
			Count:           a.count,
			AverageStrength: float64(a.sum) / float64(a.count),
		})
	}
	sort.Slice(out.Symbols, func(i, j int) bool {
		if out.Symbols[i].AverageStrength != out.Symbols[j].AverageStrength {
			return out.Symbols[i].AverageStrength > out.Symbols[j].AverageStrength
		}
		return out.Symbols[i].Symbol < out.Symbols[j].Symbol
	})
	return out
}

type MarketOverview struct {
	Coins          []domain.CoinSnapshot `json:"coins"`
	TotalMarketCap float64               `json:"total_market_cap"`
	TotalVolume    float64               `json:"total_volume"`
	Gainers        int                   `json:"gainers"`
	Losers         int                   `json:"losers"`
}

// MarketOverview fetches the configured assets' snapshots directly; it is not
// cached. Missing numbers count as zero in the totals.
func (s *SignalService) MarketOverview(ctx context.Context) (MarketOverview, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.market-overview")
	defer span.End()

	if s.market == nil {
		return MarketOverview{}, fmt.Errorf("signal service is not fully initialized")
	}
	coins, err := s.market.FetchMarketSnapshot(ctx, s.opts.AssetIDs, s.opts.PageSize)
	if err != nil {
		return MarketOverview{}, fmt.Errorf("fetch market snapshot: %w", err)
	}

	out := MarketOverview{Coins: make([]domain.CoinSnapshot, 0, len(coins))}
	for _, c := range coins {
		c = zeroMissing(c)
		out.Coins = append(out.Coins, c)
		out.TotalMarketCap += c.MarketCap
		out.TotalVolume += c.TotalVolume
		switch {
		case c.PriceChangePercentage24h > 0:
			out.Gainers++
		case c.PriceChangePercentage24h < 0:
			out.Losers++
		}
	}
	return out, nil
}

// zeroMissing replaces non-finite fields so the snapshot can be JSON encoded.
func zeroMissing(c domain.CoinSnapshot) domain.CoinSnapshot {
	fix := func(v *float64) {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = 0
		}
	}
	fix(&c.CurrentPrice)
	fix(&c.PriceChangePercentage24h)
	fix(&c.TotalVolume)
	fix(&c.MarketCap)
	return c
}
