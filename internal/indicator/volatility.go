package indicator

import (
	"math"

	"coinsignal/internal/domain"

	"gonum.org/v1/gonum/floats"
)

// computeChaikinVolatility is the percent change of the EMA of the high-low
// spread over the period.
func computeChaikinVolatility(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	p := cfg.ChaikinVolPeriod
	if p <= 0 || n < 2*p {
		return fallback(domain.IndicatorChaikinVolatility)
	}

	spread := make([]float64, n)
	floats.SubTo(spread, b.high, b.low)
	ema := emaSeries(spread, p)
	prev := ema[n-1-p]
	if prev == 0 {
		return fallback(domain.IndicatorChaikinVolatility)
	}

	v := (ema[n-1] - prev) / prev * 100
	status := domain.StatusNeutral
	switch {
	case v > cfg.ChaikinVolBand:
		status = domain.StatusHighVolatility
	case v < -cfg.ChaikinVolBand:
		status = domain.StatusLowVolatility
	}
	return result(domain.IndicatorChaikinVolatility, v, status)
}

func computeChoppiness(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	p := cfg.ChopPeriod
	if p <= 1 || n < p+1 {
		return fallback(domain.IndicatorChoppiness)
	}

	var sumTR float64
	for i := n - p; i < n; i++ {
		sumTR += trueRange(b.high, b.low, b.close, i)
	}
	rng := floats.Max(b.high[n-p:]) - floats.Min(b.low[n-p:])
	if rng <= 0 || sumTR <= 0 {
		return fallback(domain.IndicatorChoppiness)
	}

	v := 100 * math.Log10(sumTR/rng) / math.Log10(float64(p))
	status := domain.StatusNeutral
	switch {
	case v > cfg.ChopChoppy:
		status = domain.StatusChoppy
	case v < cfg.ChopTrending:
		status = domain.StatusTrending
	}
	return result(domain.IndicatorChoppiness, v, status)
}

// computeASI accumulates Wilder's swing index. The limit move is taken as the
// largest true range in the series.
func computeASI(b bars, _ Config) domain.IndicatorResult {
	n := b.len()
	if n < 2 {
		return fallback(domain.IndicatorAccumulativeSwingIndex)
	}

	var limit float64
	for i := 1; i < n; i++ {
		limit = math.Max(limit, trueRange(b.high, b.low, b.close, i))
	}
	if limit == 0 {
		return result(domain.IndicatorAccumulativeSwingIndex, 0, domain.StatusNeutral)
	}

	var asi float64
	for i := 1; i < n; i++ {
		asi += swingIndex(b, i, limit)
	}
	return result(domain.IndicatorAccumulativeSwingIndex, asi, bySign(asi))
}

func swingIndex(b bars, i int, limit float64) float64 {
	h, l, c, o := b.high[i], b.low[i], b.close[i], b.open[i]
	pc, po := b.close[i-1], b.open[i-1]

	hc := math.Abs(h - pc)
	lc := math.Abs(l - pc)
	hl := h - l
	co := math.Abs(pc - po)

	var r float64
	switch {
	case hc >= lc && hc >= hl:
		r = hc - 0.5*lc + 0.25*co
	case lc >= hc && lc >= hl:
		r = lc - 0.5*hc + 0.25*co
	default:
		r = hl + 0.25*co
	}
	if r == 0 {
		return 0
	}

	k := math.Max(hc, lc)
	return 50 * (c - pc + 0.5*(c-o) + 0.25*(pc-po)) / r * (k / limit)
}
