package domain

import (
	"fmt"
	"time"
)

// Horizon identifies one of the four trading books. Each book runs its own
// strategy, its own capital slice and its own risk budget.
type Horizon string

const (
	Intraday Horizon = "intraday"
	Swing    Horizon = "swing"
	MidTerm  Horizon = "midterm"
	LongTerm Horizon = "longterm"
)

// Horizons lists all books in canonical order.
var Horizons = []Horizon{Intraday, Swing, MidTerm, LongTerm}

func ParseHorizon(s string) (Horizon, error) {
	switch Horizon(s) {
	case Intraday, Swing, MidTerm, LongTerm:
		return Horizon(s), nil
	}
	return "", fmt.Errorf("unknown horizon %q", s)
}

// BarInterval is the native decision bar for the book.
func (h Horizon) BarInterval() time.Duration {
	switch h {
	case Intraday:
		return 15 * time.Minute
	case Swing, MidTerm:
		return 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// RegimeTimeframe is the timeframe whose market regime gates entries for
// the book: intraday trades the 15min regime, swing the daily, and the two
// slow books the weekly.
func (h Horizon) RegimeTimeframe() Timeframe {
	switch h {
	case Intraday:
		return TF15Min
	case Swing:
		return TFDaily
	default:
		return TFWeekly
	}
}

func (h Horizon) String() string { return string(h) }
