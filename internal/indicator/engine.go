// Package indicator computes technical indicators over an OHLC series. Every
// function is pure: the same series and Config always yield the same results.
package indicator

import (
	"coinsignal/internal/domain"
)

// Config holds the period lengths and thresholds for every indicator.
// Indicators selects a subset; empty means all, in DefaultOrder.
type Config struct {
	Indicators []domain.IndicatorName

	RSIPeriod      int
	RSIOversold    float64
	RSIOverbought  float64
	MomentumPeriod int
	CMOPeriod      int
	CMOOverbought  float64
	AOFast         int
	AOSlow         int
	KSTROC         [4]int
	KSTSMA         [4]int
	KSTSignal      int

	EMAFast          int
	EMASlow          int
	ADXPeriod        int
	ADXStrongTrend   float64
	AroonPeriod      int
	TripleMAShort    int
	TripleMAMedium   int
	TripleMALong     int
	ChaikinVolPeriod int
	ChaikinVolBand   float64
	ChopPeriod       int
	ChopChoppy       float64
	ChopTrending     float64
	ACPeriod         int
	VolumeAvgPeriod  int
	VolumeHighRatio  float64
	VolumeLowRatio   float64
	CMFPeriod        int
	CMFThreshold     float64
	ChaikinOscFast   int
	ChaikinOscSlow   int
	MFIPeriod        int
	MFIOverbought    float64
	MFIOversold      float64
	ForceIndexPeriod int
}

func DefaultConfig() Config {
	return Config{
		RSIPeriod:      14,
		RSIOversold:    30,
		RSIOverbought:  70,
		MomentumPeriod: 10,
		CMOPeriod:      14,
		CMOOverbought:  50,
		AOFast:         5,
		AOSlow:         34,
		KSTROC:         [4]int{10, 15, 20, 30},
		KSTSMA:         [4]int{10, 10, 10, 15},
		KSTSignal:      9,

		EMAFast:        12,
		EMASlow:        26,
		ADXPeriod:      14,
		ADXStrongTrend: 25,
		AroonPeriod:    25,
		TripleMAShort:  5,
		TripleMAMedium: 10,
		TripleMALong:   20,

		ChaikinVolPeriod: 10,
		ChaikinVolBand:   10,
		ChopPeriod:       14,
		ChopChoppy:       61.8,
		ChopTrending:     38.2,
		ACPeriod:         5,

		VolumeAvgPeriod:  20,
		VolumeHighRatio:  1.5,
		VolumeLowRatio:   0.5,
		CMFPeriod:        20,
		CMFThreshold:     0.05,
		ChaikinOscFast:   3,
		ChaikinOscSlow:   10,
		MFIPeriod:        14,
		MFIOverbought:    80,
		MFIOversold:      20,
		ForceIndexPeriod: 13,
	}
}

// DefaultOrder is the order results are returned in: momentum, trend,
// volatility, volume.
var DefaultOrder = []domain.IndicatorName{
	domain.IndicatorRSI,
	domain.IndicatorMomentum,
	domain.IndicatorChandeMomentum,
	domain.IndicatorAwesomeOscillator,
	domain.IndicatorKnowSureThing,
	domain.IndicatorEMACross,
	domain.IndicatorADX,
	domain.IndicatorAroon,
	domain.IndicatorTripleMA,
	domain.IndicatorVWAP,
	domain.IndicatorChaikinVolatility,
	domain.IndicatorChoppiness,
	domain.IndicatorAcceleratorOscillator,
	domain.IndicatorAccumulativeSwingIndex,
	domain.IndicatorVolume,
	domain.IndicatorChaikinMoneyFlow,
	domain.IndicatorChaikinOscillator,
	domain.IndicatorAccumulationDistrib,
	domain.IndicatorMoneyFlowIndex,
	domain.IndicatorEldersForceIndex,
}

// bars is the series split into columns once per Compute call.
type bars struct {
	open, high, low, close, volume []float64
}

func (b bars) len() int { return len(b.close) }

type computeFunc func(b bars, cfg Config) domain.IndicatorResult

var computers = map[domain.IndicatorName]computeFunc{
	domain.IndicatorRSI:                    computeRSI,
	domain.IndicatorMomentum:               computeMomentum,
	domain.IndicatorChandeMomentum:         computeCMO,
	domain.IndicatorAwesomeOscillator:      computeAO,
	domain.IndicatorKnowSureThing:          computeKST,
	domain.IndicatorEMACross:               computeEMACross,
	domain.IndicatorADX:                    computeADX,
	domain.IndicatorAroon:                  computeAroon,
	domain.IndicatorTripleMA:               computeTripleMA,
	domain.IndicatorVWAP:                   computeVWAP,
	domain.IndicatorChaikinVolatility:      computeChaikinVolatility,
	domain.IndicatorChoppiness:             computeChoppiness,
	domain.IndicatorAcceleratorOscillator:  computeAC,
	domain.IndicatorAccumulativeSwingIndex: computeASI,
	domain.IndicatorVolume:                 computeVolume,
	domain.IndicatorChaikinMoneyFlow:       computeCMF,
	domain.IndicatorChaikinOscillator:      computeChaikinOsc,
	domain.IndicatorAccumulationDistrib:    computeADL,
	domain.IndicatorMoneyFlowIndex:         computeMFI,
	domain.IndicatorEldersForceIndex:       computeForceIndex,
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Compute returns one result per configured indicator. Short series never
// fail: an indicator without enough history reports value 0 and neutral.
func (e *Engine) Compute(series domain.OHLCSeries) []domain.IndicatorResult {
	names := e.cfg.Indicators
	if len(names) == 0 {
		names = DefaultOrder
	}

	b := bars{
		open:   make([]float64, series.Len()),
		high:   series.Highs(),
		low:    series.Lows(),
		close:  series.Closes(),
		volume: series.Volumes(),
	}
	for i, p := range series.Points {
		b.open[i] = p.Open
	}

	out := make([]domain.IndicatorResult, 0, len(names))
	for _, name := range names {
		fn, ok := computers[name]
		if !ok {
			continue
		}
		r := fn(b, e.cfg)
		if !isFinite(r.Value) {
			r = fallback(name)
		}
		out = append(out, r)
	}
	return out
}

// Overall is a plurality vote over each result's bias. Any tie for first place
// resolves to neutral.
func Overall(results []domain.IndicatorResult) domain.Status {
	counts := map[domain.Status]int{}
	for _, r := range results {
		counts[r.Status.Bias()]++
	}

	bull := counts[domain.StatusBullish]
	bear := counts[domain.StatusBearish]
	neutral := counts[domain.StatusNeutral]

	switch {
	case bull > bear && bull > neutral:
		return domain.StatusBullish
	case bear > bull && bear > neutral:
		return domain.StatusBearish
	default:
		return domain.StatusNeutral
	}
}

func result(name domain.IndicatorName, value float64, status domain.Status) domain.IndicatorResult {
	return domain.IndicatorResult{
		Name:   name,
		Family: domain.FamilyOf(name),
		Value:  value,
		Status: status,
	}
}

func fallback(name domain.IndicatorName) domain.IndicatorResult {
	return result(name, 0, domain.StatusNeutral)
}

func bySign(v float64) domain.Status {
	switch {
	case v > 0:
		return domain.StatusBullish
	case v < 0:
		return domain.StatusBearish
	}
	return domain.StatusNeutral
}
