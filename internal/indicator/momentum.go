package indicator

import (
	"math"

	"coinsignal/internal/domain"
)

func computeRSI(b bars, cfg Config) domain.IndicatorResult {
	series := rsiSeries(b.close, cfg.RSIPeriod)
	v := last(series)
	if !isFinite(v) {
		return fallback(domain.IndicatorRSI)
	}

	status := domain.StatusNeutral
	switch {
	case v < cfg.RSIOversold:
		status = domain.StatusOversold
	case v > cfg.RSIOverbought:
		status = domain.StatusOverbought
	}
	return result(domain.IndicatorRSI, v, status)
}

func computeMomentum(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	p := cfg.MomentumPeriod
	if p <= 0 || n <= p {
		return fallback(domain.IndicatorMomentum)
	}
	v := b.close[n-1] - b.close[n-1-p]
	return result(domain.IndicatorMomentum, v, bySign(v))
}

// computeCMO is the Chande momentum oscillator in [-100, 100].
func computeCMO(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	p := cfg.CMOPeriod
	if p <= 0 || n <= p {
		return fallback(domain.IndicatorChandeMomentum)
	}

	var up, down float64
	for i := n - p; i < n; i++ {
		delta := b.close[i] - b.close[i-1]
		if delta > 0 {
			up += delta
		} else {
			down -= delta
		}
	}
	if up+down == 0 {
		return result(domain.IndicatorChandeMomentum, 0, domain.StatusNeutral)
	}

	v := 100 * (up - down) / (up + down)
	status := bySign(v)
	switch {
	case v > cfg.CMOOverbought:
		status = domain.StatusOverbought
	case v < -cfg.CMOOverbought:
		status = domain.StatusOversold
	}
	return result(domain.IndicatorChandeMomentum, v, status)
}

// aoSeries is SMA(fast) - SMA(slow) of the median price.
func aoSeries(b bars, fast, slow int) []float64 {
	median := medianPrices(b.high, b.low)
	fastSMA := smaSeries(median, fast)
	slowSMA := smaSeries(median, slow)
	out := make([]float64, len(median))
	for i := range median {
		out[i] = fastSMA[i] - slowSMA[i]
	}
	return out
}

func computeAO(b bars, cfg Config) domain.IndicatorResult {
	if cfg.AOSlow <= 0 || b.len() < cfg.AOSlow {
		return fallback(domain.IndicatorAwesomeOscillator)
	}
	v := last(aoSeries(b, cfg.AOFast, cfg.AOSlow))
	if !isFinite(v) {
		return fallback(domain.IndicatorAwesomeOscillator)
	}
	return result(domain.IndicatorAwesomeOscillator, v, bySign(v))
}

// computeKST is the Know Sure Thing: a weighted sum of four smoothed rates of
// change, compared against its own moving average.
func computeKST(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	kst := make([]float64, n)
	for k := 0; k < 4; k++ {
		smoothed := smaSeries(rocSeries(b.close, cfg.KSTROC[k]), cfg.KSTSMA[k])
		weight := float64(k + 1)
		for i := range kst {
			kst[i] += weight * smoothed[i]
		}
	}

	v := last(kst)
	if !isFinite(v) {
		return fallback(domain.IndicatorKnowSureThing)
	}

	signal := last(smaSeries(kst, cfg.KSTSignal))
	status := bySign(v)
	if isFinite(signal) {
		status = bySign(v - signal)
	} else {
		signal = v
	}

	r := result(domain.IndicatorKnowSureThing, v, status)
	r.Detail = domain.KSTDetail{KST: v, Signal: signal}
	return r
}

func computeAC(b bars, cfg Config) domain.IndicatorResult {
	if cfg.AOSlow <= 0 || b.len() < cfg.AOSlow+cfg.ACPeriod-1 {
		return fallback(domain.IndicatorAcceleratorOscillator)
	}
	ao := aoSeries(b, cfg.AOFast, cfg.AOSlow)
	aoSMA := smaSeries(ao, cfg.ACPeriod)
	v := last(ao) - last(aoSMA)
	if math.IsNaN(v) {
		return fallback(domain.IndicatorAcceleratorOscillator)
	}
	return result(domain.IndicatorAcceleratorOscillator, v, bySign(v))
}
