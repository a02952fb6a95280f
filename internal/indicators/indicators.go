// Package indicators holds the small set of price-series primitives the
// regime classifier and horizon strategies share. All functions are pure
// and operate on chronologically ordered bars (oldest first).
package indicators

import "github.com/sawpanic/horizon/internal/domain"

// SMA returns the simple moving average of the last period closes, or 0
// when fewer bars exist.
func SMA(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}
	sum := 0.0
	for _, b := range bars[len(bars)-period:] {
		sum += b.Close
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average of closes, seeded with the SMA
// of the first period bars. Returns 0 when fewer than period bars exist.
func EMA(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}
	seed := 0.0
	for _, b := range bars[:period] {
		seed += b.Close
	}
	ema := seed / float64(period)
	k := 2.0 / float64(period+1)
	for _, b := range bars[period:] {
		ema = b.Close*k + ema*(1-k)
	}
	return ema
}

// ATR is the Wilder average true range over period. Needs period+1 bars.
func ATR(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		tr := bars[i].High - bars[i].Low
		if hc := abs(bars[i].High - bars[i-1].Close); hc > tr {
			tr = hc
		}
		if lc := abs(bars[i].Low - bars[i-1].Close); lc > tr {
			tr = lc
		}
		trs = append(trs, tr)
	}
	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)
	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}

// ATRPercent is ATR expressed as a percentage of the last close.
func ATRPercent(bars []domain.Bar, period int) float64 {
	if len(bars) == 0 {
		return 0
	}
	last := bars[len(bars)-1].Close
	if last <= 0 {
		return 0
	}
	return ATR(bars, period) / last * 100
}

// VWAP is the volume-weighted average price across the given bars, using
// the typical price per bar. Returns 0 when total volume is zero.
func VWAP(bars []domain.Bar) float64 {
	var pv, vol float64
	for _, b := range bars {
		typ := (b.High + b.Low + b.Close) / 3
		pv += typ * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

// HighestHigh returns the highest high of the last period bars.
func HighestHigh(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) == 0 {
		return 0
	}
	if period > len(bars) {
		period = len(bars)
	}
	hh := bars[len(bars)-period].High
	for _, b := range bars[len(bars)-period:] {
		if b.High > hh {
			hh = b.High
		}
	}
	return hh
}

// LowestLow returns the lowest low of the last period bars.
func LowestLow(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) == 0 {
		return 0
	}
	if period > len(bars) {
		period = len(bars)
	}
	ll := bars[len(bars)-period].Low
	for _, b := range bars[len(bars)-period:] {
		if b.Low < ll {
			ll = b.Low
		}
	}
	return ll
}

// AvgVolume is the mean volume of the last period bars.
func AvgVolume(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}
	sum := 0.0
	for _, b := range bars[len(bars)-period:] {
		sum += b.Volume
	}
	return sum / float64(period)
}

// SlopeNormalized fits a least-squares line through the values and returns
// the per-step slope divided by the mean, so series on different scales
// compare directly. Returns 0 for fewer than two points or a zero mean.
func SlopeNormalized(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	mean := sumY / fn
	if mean == 0 {
		return 0
	}
	return slope / mean
}

// PercentChange is (to-from)/from×100, 0 when from is 0.
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
