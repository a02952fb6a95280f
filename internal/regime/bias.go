package regime

import "github.com/sawpanic/horizon/internal/domain"

type Bias string

const (
	Bullish Bias = "BULLISH"
	Bearish Bias = "BEARISH"
	Neutral Bias = "NEUTRAL"
)

// tfWeights favors the daily reading; the 15-minute one is noise-prone and
// the weekly one lags.
var tfWeights = map[domain.Timeframe]float64{
	domain.TF15Min:  0.2,
	domain.TFDaily:  0.5,
	domain.TFWeekly: 0.3,
}

// TradingBias aggregates readings across timeframes into a directional
// lean. One side's weighted score must exceed the other's by 50% or the
// bias stays NEUTRAL. Missing or non-trending timeframes contribute
// nothing.
func TradingBias(readings map[domain.Timeframe]*Reading) Bias {
	var bull, bear float64
	for tf, w := range tfWeights {
		r, ok := readings[tf]
		if !ok || r == nil {
			continue
		}
		switch r.Label {
		case TrendUp:
			bull += w * r.Confidence
		case TrendDown:
			bear += w * r.Confidence
		}
	}
	switch {
	case bull > bear*1.5:
		return Bullish
	case bear > bull*1.5:
		return Bearish
	default:
		return Neutral
	}
}
