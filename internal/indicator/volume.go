package indicator

import (
	"coinsignal/internal/domain"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// computeVolume compares the latest volume with the average of the bars before it.
func computeVolume(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	p := cfg.VolumeAvgPeriod
	if p <= 0 || n < p+1 {
		return fallback(domain.IndicatorVolume)
	}

	current := b.volume[n-1]
	average := stat.Mean(b.volume[n-1-p:n-1], nil)
	if average <= 0 {
		return fallback(domain.IndicatorVolume)
	}

	status := domain.StatusNeutral
	switch ratio := current / average; {
	case ratio > cfg.VolumeHighRatio:
		status = domain.StatusHighVolume
	case ratio < cfg.VolumeLowRatio:
		status = domain.StatusLowVolume
	}
	r := result(domain.IndicatorVolume, current, status)
	r.Detail = domain.VolumeDetail{Current: current, Average: average}
	return r
}

func computeCMF(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	p := cfg.CMFPeriod
	if p <= 0 || n < p {
		return fallback(domain.IndicatorChaikinMoneyFlow)
	}

	var flow float64
	for i := n - p; i < n; i++ {
		flow += moneyFlowMultiplier(b.high[i], b.low[i], b.close[i]) * b.volume[i]
	}
	totalVolume := floats.Sum(b.volume[n-p:])
	if totalVolume <= 0 {
		return fallback(domain.IndicatorChaikinMoneyFlow)
	}

	v := flow / totalVolume
	status := domain.StatusNeutral
	switch {
	case v > cfg.CMFThreshold:
		status = domain.StatusBullish
	case v < -cfg.CMFThreshold:
		status = domain.StatusBearish
	}
	return result(domain.IndicatorChaikinMoneyFlow, v, status)
}

func computeChaikinOsc(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	if cfg.ChaikinOscSlow <= 0 || n < cfg.ChaikinOscSlow {
		return fallback(domain.IndicatorChaikinOscillator)
	}
	adl := adlSeries(b.high, b.low, b.close, b.volume)
	v := last(emaSeries(adl, cfg.ChaikinOscFast)) - last(emaSeries(adl, cfg.ChaikinOscSlow))
	return result(domain.IndicatorChaikinOscillator, v, bySign(v))
}

// computeADL reports the accumulation/distribution line and its last-bar slope.
func computeADL(b bars, _ Config) domain.IndicatorResult {
	n := b.len()
	if n < 2 {
		return fallback(domain.IndicatorAccumulationDistrib)
	}
	adl := adlSeries(b.high, b.low, b.close, b.volume)
	return result(domain.IndicatorAccumulationDistrib, adl[n-1], bySign(adl[n-1]-adl[n-2]))
}

func computeMFI(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	p := cfg.MFIPeriod
	if p <= 0 || n < p+1 {
		return fallback(domain.IndicatorMoneyFlowIndex)
	}

	tp := typicalPrices(b.high, b.low, b.close)
	var positive, negative float64
	for i := n - p; i < n; i++ {
		flow := tp[i] * b.volume[i]
		switch {
		case tp[i] > tp[i-1]:
			positive += flow
		case tp[i] < tp[i-1]:
			negative += flow
		}
	}
	if positive+negative == 0 {
		return fallback(domain.IndicatorMoneyFlowIndex)
	}

	v := 100.0
	if negative > 0 {
		v = 100 - 100/(1+positive/negative)
	}
	status := domain.StatusNeutral
	switch {
	case v > cfg.MFIOverbought:
		status = domain.StatusOverbought
	case v < cfg.MFIOversold:
		status = domain.StatusOversold
	}
	return result(domain.IndicatorMoneyFlowIndex, v, status)
}

// computeForceIndex is Elder's force index smoothed with an EMA.
func computeForceIndex(b bars, cfg Config) domain.IndicatorResult {
	n := b.len()
	p := cfg.ForceIndexPeriod
	if p <= 0 || n < p+1 {
		return fallback(domain.IndicatorEldersForceIndex)
	}

	force := make([]float64, n-1)
	for i := 1; i < n; i++ {
		force[i-1] = (b.close[i] - b.close[i-1]) * b.volume[i]
	}
	v := last(emaSeries(force, p))
	return result(domain.IndicatorEldersForceIndex, v, bySign(v))
}
