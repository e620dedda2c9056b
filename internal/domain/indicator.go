package domain

import (
	"encoding/json"
	"fmt"
)

type Family string

const (
	FamilyMomentum   Family = "momentum"
	FamilyTrend      Family = "trend"
	FamilyVolatility Family = "volatility"
	FamilyVolume     Family = "volume"
)

type IndicatorName string

const (
	IndicatorRSI                    IndicatorName = "rsi"
	IndicatorMomentum               IndicatorName = "momentum"
	IndicatorChandeMomentum         IndicatorName = "chande_momentum"
	IndicatorAwesomeOscillator      IndicatorName = "awesome_oscillator"
	IndicatorKnowSureThing          IndicatorName = "know_sure_thing"
	IndicatorEMACross               IndicatorName = "ema_cross"
	IndicatorADX                    IndicatorName = "adx"
	IndicatorAroon                  IndicatorName = "aroon"
	IndicatorTripleMA               IndicatorName = "moving_average_triple"
	IndicatorVWAP                   IndicatorName = "vwap"
	IndicatorChaikinVolatility      IndicatorName = "chaikin_volatility"
	IndicatorChoppiness             IndicatorName = "choppiness_index"
	IndicatorAcceleratorOscillator  IndicatorName = "accelerator_oscillator"
	IndicatorAccumulativeSwingIndex IndicatorName = "accumulative_swing_index"
	IndicatorVolume                 IndicatorName = "volume"
	IndicatorChaikinMoneyFlow       IndicatorName = "chaikin_money_flow"
	IndicatorChaikinOscillator      IndicatorName = "chaikin_oscillator"
	IndicatorAccumulationDistrib    IndicatorName = "accumulation_distribution"
	IndicatorMoneyFlowIndex         IndicatorName = "money_flow_index"
	IndicatorEldersForceIndex       IndicatorName = "elders_force_index"
)

var indicatorFamilies = map[IndicatorName]Family{
	IndicatorRSI:                    FamilyMomentum,
	IndicatorMomentum:               FamilyMomentum,
	IndicatorChandeMomentum:         FamilyMomentum,
	IndicatorAwesomeOscillator:      FamilyMomentum,
	IndicatorKnowSureThing:          FamilyMomentum,
	IndicatorEMACross:               FamilyTrend,
	IndicatorADX:                    FamilyTrend,
	IndicatorAroon:                  FamilyTrend,
	IndicatorTripleMA:               FamilyTrend,
	IndicatorVWAP:                   FamilyTrend,
	IndicatorChaikinVolatility:      FamilyVolatility,
	IndicatorChoppiness:             FamilyVolatility,
	IndicatorAcceleratorOscillator:  FamilyVolatility,
	IndicatorAccumulativeSwingIndex: FamilyVolatility,
	IndicatorVolume:                 FamilyVolume,
	IndicatorChaikinMoneyFlow:       FamilyVolume,
	IndicatorChaikinOscillator:      FamilyVolume,
	IndicatorAccumulationDistrib:    FamilyVolume,
	IndicatorMoneyFlowIndex:         FamilyVolume,
	IndicatorEldersForceIndex:       FamilyVolume,
}

// FamilyOf returns the family an indicator belongs to, or "" if unknown.
func FamilyOf(name IndicatorName) Family {
	return indicatorFamilies[name]
}

type Status string

const (
	StatusBullish        Status = "bullish"
	StatusBearish        Status = "bearish"
	StatusNeutral        Status = "neutral"
	StatusGoldenCross    Status = "golden_cross"
	StatusDeathCross     Status = "death_cross"
	StatusOverbought     Status = "overbought"
	StatusOversold       Status = "oversold"
	StatusStrongTrend    Status = "strong_trend"
	StatusWeakTrend      Status = "weak_trend"
	StatusHighVolume     Status = "high_volume"
	StatusLowVolume      Status = "low_volume"
	StatusTrending       Status = "trending"
	StatusChoppy         Status = "choppy"
	StatusHighVolatility Status = "high_volatility"
	StatusLowVolatility  Status = "low_volatility"
)

// Bias collapses a status to the direction it votes for in the overall signal.
// Oversold and overbought vote for the expected reversal.
func (s Status) Bias() Status {
	switch s {
	case StatusBullish, StatusGoldenCross, StatusOversold:
		return StatusBullish
	case StatusBearish, StatusDeathCross, StatusOverbought:
		return StatusBearish
	default:
		return StatusNeutral
	}
}

// Detail is the typed payload carried by an IndicatorResult. The set of
// implementations is closed to this package.
type Detail interface {
	indicatorDetail()
}

type EMACrossDetail struct {
	FastEMA float64 `json:"fast_ema"`
	SlowEMA float64 `json:"slow_ema"`
}

type AroonDetail struct {
	AroonUp   float64 `json:"aroon_up"`
	AroonDown float64 `json:"aroon_down"`
}

type TripleMADetail struct {
	Short  float64 `json:"short"`
	Medium float64 `json:"medium"`
	Long   float64 `json:"long"`
}

type VolumeDetail struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
}

type KSTDetail struct {
	KST    float64 `json:"kst"`
	Signal float64 `json:"signal"`
}

type ADXDetail struct {
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`
}

func (EMACrossDetail) indicatorDetail() {}
func (AroonDetail) indicatorDetail()    {}
func (TripleMADetail) indicatorDetail() {}
func (VolumeDetail) indicatorDetail()   {}
func (KSTDetail) indicatorDetail()      {}
func (ADXDetail) indicatorDetail()      {}

// IndicatorResult is one computed indicator. Value is the headline number; Detail
// holds the extra typed fields for indicators that have them.
type IndicatorResult struct {
	Name   IndicatorName `json:"name"`
	Family Family        `json:"family"`
	Value  float64       `json:"value"`
	Status Status        `json:"status"`
	Detail Detail        `json:"detail,omitempty"`
}

func (r *IndicatorResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name   IndicatorName   `json:"name"`
		Family Family          `json:"family"`
		Value  float64         `json:"value"`
		Status Status          `json:"status"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Name = raw.Name
	r.Family = raw.Family
	r.Value = raw.Value
	r.Status = raw.Status
	r.Detail = nil
	if len(raw.Detail) == 0 || string(raw.Detail) == "null" {
		return nil
	}

	detail, err := decodeDetail(raw.Name, raw.Detail)
	if err != nil {
		return fmt.Errorf("decode %s detail: %w", raw.Name, err)
	}
	r.Detail = detail
	return nil
}

func decodeDetail(name IndicatorName, data json.RawMessage) (Detail, error) {
	switch name {
	case IndicatorEMACross:
		var d EMACrossDetail
		err := json.Unmarshal(data, &d)
		return d, err
	case IndicatorAroon:
		var d AroonDetail
		err := json.Unmarshal(data, &d)
		return d, err
	case IndicatorTripleMA:
		var d TripleMADetail
		err := json.Unmarshal(data, &d)
		return d, err
	case IndicatorVolume:
		var d VolumeDetail
		err := json.Unmarshal(data, &d)
		return d, err
	case IndicatorKnowSureThing:
		var d KSTDetail
		err := json.Unmarshal(data, &d)
		return d, err
	case IndicatorADX:
		var d ADXDetail
		err := json.Unmarshal(data, &d)
		return d, err
	}
	return nil, fmt.Errorf("indicator %q carries no detail", name)
}
