package domain

import "time"

// Timeframe is a bar aggregation period used for regime classification and
// strategy inputs.
type Timeframe string

const (
	TF15Min  Timeframe = "15min"
	TFHourly Timeframe = "1h"
	TFDaily  Timeframe = "daily"
	TFWeekly Timeframe = "weekly"
)

// Bar is a single OHLCV candle. Time is the bar open.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Range is the high-low span of the bar.
func (b Bar) Range() float64 { return b.High - b.Low }

// Quote is the latest tape state for a symbol, including the running
// session levels intraday logic keys off.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	DayOpen   float64   `json:"day_open"`
	DayHigh   float64   `json:"day_high"`
	DayLow    float64   `json:"day_low"`
	PrevClose float64   `json:"prev_close"`
	Time      time.Time `json:"time"`
}

// Snapshot bundles everything a strategy may consult for one symbol in one
// cycle: bars per timeframe, the live quote, fundamentals when available,
// and index bars for relative-strength comparison. Fields a given horizon
// does not need are simply left empty; strategies fail closed on missing
// inputs.
type Snapshot struct {
	Symbol       string
	Quote        Quote
	Bars         map[Timeframe][]Bar
	Fundamentals *Fundamentals
	IndexBars    map[Timeframe][]Bar
}

// BarsFor returns the bars for a timeframe, nil when absent.
func (s *Snapshot) BarsFor(tf Timeframe) []Bar {
	if s == nil || s.Bars == nil {
		return nil
	}
	return s.Bars[tf]
}

// IndexBarsFor returns the reference-index bars for a timeframe, nil when
// absent. Comparisons against the index must stay on the instrument's own
// timeframe.
func (s *Snapshot) IndexBarsFor(tf Timeframe) []Bar {
	if s == nil || s.IndexBars == nil {
		return nil
	}
	return s.IndexBars[tf]
}
