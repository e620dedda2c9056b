package indicator

import (
	"math"

	"coinsignal/internal/domain"

	"gonum.org/v1/gonum/floats"
)

// computeEMACross reports golden/death cross when the fast EMA crossed the slow
// one on the latest bar, otherwise which side the fast EMA is on.
func computeEMACross(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	if cfg.EMASlow <= 0 || n < cfg.EMASlow || n < 2 {
		return fallback(domain.IndicatorEMACross)
	}

	fast := emaSeries(b.close, cfg.EMAFast)
	slow := emaSeries(b.close, cfg.EMASlow)
	currFast, currSlow := fast[n-1], slow[n-1]
	prevFast, prevSlow := fast[n-2], slow[n-2]

	status := domain.StatusNeutral
	switch {
	case currFast > currSlow && prevFast <= prevSlow:
		status = domain.StatusGoldenCross
	case currFast < currSlow && prevFast >= prevSlow:
		status = domain.StatusDeathCross
	case currFast > currSlow:
		status = domain.StatusBullish
	case currFast < currSlow:
		status = domain.StatusBearish
	}

	r := result(domain.IndicatorEMACross, currFast-currSlow, status)
	r.Detail = domain.EMACrossDetail{FastEMA: currFast, SlowEMA: currSlow}
	return r
}

// computeADX uses Wilder's smoothing for TR, +DM, -DM and the DX average.
func computeADX(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	p := cfg.ADXPeriod
	if p <= 0 || n < 2*p {
		return fallback(domain.IndicatorADX)
	}

	var sTR, sPlus, sMinus float64
	var adx, plusDI, minusDI float64
	dxCount := 0
	var dxSum float64
	for i := 1; i < n; i++ {
		upMove := b.high[i] - b.high[i-1]
		downMove := b.low[i-1] - b.low[i]
		var plusDM, minusDM float64
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}
		tr := trueRange(b.high, b.low, b.close, i)

		if i <= p {
			sTR += tr
			sPlus += plusDM
			sMinus += minusDM
			if i < p {
				continue
			}
		} else {
			sTR = sTR - sTR/float64(p) + tr
			sPlus = sPlus - sPlus/float64(p) + plusDM
			sMinus = sMinus - sMinus/float64(p) + minusDM
		}

		if sTR == 0 {
			plusDI, minusDI = 0, 0
		} else {
			plusDI = 100 * sPlus / sTR
			minusDI = 100 * sMinus / sTR
		}
		var dx float64
		if plusDI+minusDI != 0 {
			dx = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
		}

		dxCount++
		switch {
		case dxCount < p:
			dxSum += dx
		case dxCount == p:
			dxSum += dx
			adx = dxSum / float64(p)
		default:
			adx = (adx*float64(p-1) + dx) / float64(p)
		}
	}
	if dxCount < p {
		return fallback(domain.IndicatorADX)
	}

	status := domain.StatusWeakTrend
	if adx >= cfg.ADXStrongTrend {
		status = domain.StatusStrongTrend
	}
	r := result(domain.IndicatorADX, adx, status)
	r.Detail = domain.ADXDetail{PlusDI: plusDI, MinusDI: minusDI}
	return r
}

// computeAroon reports aroon up minus aroon down as the value.
func computeAroon(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	p := cfg.AroonPeriod
	if p <= 0 || n < p+1 {
		return fallback(domain.IndicatorAroon)
	}

	start := n - 1 - p
	highIdx, lowIdx := start, start
	for i := start; i < n; i++ {
		if b.high[i] >= b.high[highIdx] {
			highIdx = i
		}
		if b.low[i] <= b.low[lowIdx] {
			lowIdx = i
		}
	}
	up := 100 * float64(p-(n-1-highIdx)) / float64(p)
	down := 100 * float64(p-(n-1-lowIdx)) / float64(p)

	status := domain.StatusNeutral
	switch {
	case up > 70 && down < 30:
		status = domain.StatusBullish
	case down > 70 && up < 30:
		status = domain.StatusBearish
	}
	r := result(domain.IndicatorAroon, up-down, status)
	r.Detail = domain.AroonDetail{AroonUp: up, AroonDown: down}
	return r
}

func computeTripleMA(b bars, cfg Config) domain.IndicatorResult {
	if cfg.TripleMALong <= 0 || b.len() < cfg.TripleMALong {
		return fallback(domain.IndicatorTripleMA)
	}
	short := last(smaSeries(b.close, cfg.TripleMAShort))
	medium := last(smaSeries(b.close, cfg.TripleMAMedium))
	long := last(smaSeries(b.close, cfg.TripleMALong))

	status := domain.StatusNeutral
	switch {
	case short > medium && medium > long:
		status = domain.StatusBullish
	case short < medium && medium < long:
		status = domain.StatusBearish
	}
	r := result(domain.IndicatorTripleMA, short, status)
	r.Detail = domain.TripleMADetail{Short: short, Medium: medium, Long: long}
	return r
}

// computeVWAP is the volume weighted typical price over the whole series.
func computeVWAP(b bars, _ Config) domain.IndicatorResult {
	if b.len() == 0 {
		return fallback(domain.IndicatorVWAP)
	}
	totalVolume := floats.Sum(b.volume)
	if totalVolume <= 0 {
		return fallback(domain.IndicatorVWAP)
	}
	tp := typicalPrices(b.high, b.low, b.close)
	vwap := floats.Dot(tp, b.volume) / totalVolume
	return result(domain.IndicatorVWAP, vwap, bySign(last(b.close)-vwap))
}
