package indicator

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// smaSeries returns the simple moving average at every index. Indices without a
// full window, or whose window contains NaN, are NaN.
func smaSeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if floats.HasNaN(window) {
			continue
		}
		out[i] = stat.Mean(window, nil)
	}
	return out
}

// emaSeries is seeded with the first value, so every index is defined.
func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rsiSeries uses Wilder smoothing. The first period entries are NaN.
func rsiSeries(closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}
	series := nanSeries(len(closes))

	var gainSum float64
	var lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	series[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		series[i] = rsiFromAvg(avgGain, avgLoss)
	}

	return series
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// rocSeries is the percentage rate of change over period bars.
func rocSeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	for i := period; i < len(closes); i++ {
		prev := closes[i-period]
		if prev == 0 {
			continue
		}
		out[i] = (closes[i] - prev) / prev * 100
	}
	return out
}

// trueRange at i uses the previous close; index 0 falls back to high-low.
func trueRange(highs, lows, closes []float64, i int) float64 {
	hl := highs[i] - lows[i]
	if i == 0 {
		return hl
	}
	return math.Max(hl, math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
}

func medianPrices(highs, lows []float64) []float64 {
	out := make([]float64, len(highs))
	for i := range highs {
		out[i] = (highs[i] + lows[i]) / 2
	}
	return out
}

func typicalPrices(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	return out
}

// moneyFlowMultiplier is the close location value; zero when the bar has no range.
func moneyFlowMultiplier(high, low, close float64) float64 {
	if high == low {
		return 0
	}
	return ((close - low) - (high - close)) / (high - low)
}

func adlSeries(highs, lows, closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	var acc float64
	for i := range closes {
		acc += moneyFlowMultiplier(highs[i], lows[i], closes[i]) * volumes[i]
		out[i] = acc
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
