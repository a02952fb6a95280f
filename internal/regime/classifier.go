// Package regime classifies market condition from a bar series and serves
// cached readings per (symbol, timeframe). A reading is market-wide input
// for entry gating and position sizing, not an instrument signal.
package regime

import (
	"errors"
	"math"
	"time"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/indicators"
)

type Label string

const (
	TrendUp        Label = "TREND_UP"
	TrendDown      Label = "TREND_DOWN"
	Range          Label = "RANGE"
	HighVolatility Label = "HIGH_VOLATILITY"
)

// ErrInsufficientData is returned when the bar series is too short to
// classify. Callers skip the symbol/horizon for the cycle.
var ErrInsufficientData = errors.New("regime: insufficient bars for classification")

const (
	minBars        = 50
	fastPeriod     = 20
	midPeriod      = 50
	longPeriod     = 200
	atrPeriod      = 14
	highVolATRPct  = 3.0
	strongTrendSep = 1.0
	weakTrendSep   = 0.2
)

// Reading is one classification, replaced wholesale on recompute.
type Reading struct {
	Label      Label            `json:"label"`
	Confidence float64          `json:"confidence"`
	FastEMA    float64          `json:"fast_ema"`
	MidEMA     float64          `json:"mid_ema"`
	LongEMA    float64          `json:"long_ema"`
	ATRPercent float64          `json:"atr_percent"`
	Timeframe  domain.Timeframe `json:"timeframe"`
	ComputedAt time.Time        `json:"computed_at"`
}

// Trending reports whether the reading is a directional regime.
func (r *Reading) Trending() bool {
	return r != nil && (r.Label == TrendUp || r.Label == TrendDown)
}

type Classifier struct {
	now func() time.Time
}

func NewClassifier() *Classifier {
	return &Classifier{now: time.Now}
}

// Classify labels the bar series. Volatility overrides direction: ATR%
// above 3.0 is HIGH_VOLATILITY no matter what the EMAs say.
func (c *Classifier) Classify(bars []domain.Bar, tf domain.Timeframe) (*Reading, error) {
	if len(bars) < minBars {
		return nil, ErrInsufficientData
	}

	r := &Reading{
		FastEMA:    indicators.EMA(bars, fastPeriod),
		MidEMA:     indicators.EMA(bars, midPeriod),
		ATRPercent: indicators.ATRPercent(bars, atrPeriod),
		Timeframe:  tf,
		ComputedAt: c.now(),
	}
	if len(bars) >= longPeriod {
		r.LongEMA = indicators.EMA(bars, longPeriod)
	}

	if r.ATRPercent > highVolATRPct {
		r.Label = HighVolatility
		r.Confidence = 0.8
		return r, nil
	}

	sep := 0.0
	if r.MidEMA != 0 {
		sep = math.Abs(r.FastEMA-r.MidEMA) / r.MidEMA * 100
	}

	switch {
	case sep > strongTrendSep:
		conf := math.Min(0.9, 0.5+sep*0.1)
		if r.FastEMA > r.MidEMA {
			r.Label = TrendUp
			if r.LongEMA > 0 && r.MidEMA > r.LongEMA {
				conf = math.Min(0.95, conf+0.1)
			}
		} else {
			r.Label = TrendDown
			if r.LongEMA > 0 && r.MidEMA < r.LongEMA {
				conf = math.Min(0.95, conf+0.1)
			}
		}
		r.Confidence = conf
	case sep >= weakTrendSep:
		if r.FastEMA > r.MidEMA {
			r.Label = TrendUp
		} else {
			r.Label = TrendDown
		}
		r.Confidence = 0.6
	default:
		r.Label = Range
		r.Confidence = 0.7
		if sep < 0.1 {
			r.Confidence = 0.8
		}
	}
	return r, nil
}
