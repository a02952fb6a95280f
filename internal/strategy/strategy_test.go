package strategy

import (
	"time"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/regime"
)

// seriesBars builds n bars walking from start in fixed increments of step
// per bar, with symmetric wicks and constant volume. Oldest first.
func seriesBars(n int, start, step, wick, vol float64) []domain.Bar {
	t0 := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		open := start + step*float64(i)
		bars[i] = domain.Bar{
			Time:   t0.Add(time.Duration(i) * 15 * time.Minute),
			Open:   open,
			Close:  open + step,
			High:   open + step + wick,
			Low:    open - wick,
			Volume: vol,
		}
	}
	return bars
}

// trendingIndex is an index session with a 2% directional move on a wide
// range, so the index tone reads trending and the day type trending.
func trendingIndex() []domain.Bar {
	return seriesBars(8, 100, 0.25, 0.05, 1000)
}

func newReading(tf domain.Timeframe, label regime.Label) *regime.Reading {
	return &regime.Reading{
		Label:      label,
		Confidence: 0.9,
		Timeframe:  tf,
		ComputedAt: time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
	}
}

func sessionClock(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}
