package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/regime"
)

// swingSnapshot is seventy daily bars grinding from 100 to 135 with a
// volume surge on the breakout bar, against a flat index.
func swingSnapshot() *domain.Snapshot {
	bars := seriesBars(70, 100, 0.5, 0.2, 1000)
	bars[len(bars)-1].Volume = 2000
	return &domain.Snapshot{
		Symbol:    "TCS",
		Quote:     domain.Quote{Symbol: "TCS", Price: 135.5},
		Bars:      map[domain.Timeframe][]domain.Bar{domain.TFDaily: bars},
		IndexBars: map[domain.Timeframe][]domain.Bar{domain.TFDaily: seriesBars(70, 100, 0, 0.1, 1000)},
	}
}

func swingPosition(entry, stop, target float64, openedAt time.Time) *domain.Position {
	sig := domain.NewSignal("TCS", domain.Swing, domain.Long, entry, stop, target, "test", openedAt)
	return domain.OpenPosition(sig, 20000, openedAt)
}

func TestSwingLongBreakout(t *testing.T) {
	s := NewSwing()
	sig, err := s.GenerateSignal(context.Background(), swingSnapshot(), newReading(domain.TFDaily, regime.TrendUp), sessionClock(16, 0))
	require.NoError(t, err)
	require.NotNil(t, sig, "10-day breakout with relative strength should signal")

	assert.Equal(t, domain.Long, sig.Direction)
	assert.Equal(t, domain.Swing, sig.Horizon)
	assert.InDelta(t, 134.15, sig.Stop, 1e-9, "stop should be 1.5 ATR under the entry")
	assert.InDelta(t, 138.2, sig.Target, 1e-9, "target should be 2R")
}

func TestSwingRequiresRelativeStrength(t *testing.T) {
	s := NewSwing()
	snap := swingSnapshot()
	// Index outrunning the instrument over the lookback window.
	snap.IndexBars[domain.TFDaily] = seriesBars(70, 100, 1.0, 0.2, 1000)
	sig, err := s.GenerateSignal(context.Background(), snap, newReading(domain.TFDaily, regime.TrendUp), sessionClock(16, 0))
	require.NoError(t, err)
	assert.Nil(t, sig, "lagging the index should not signal")
}

func TestSwingComparesStrengthOnDailies(t *testing.T) {
	s := NewSwing()
	snap := swingSnapshot()
	// Daily index leaves the instrument far behind even while the index's
	// running session drifts lower. Only the dailies may decide.
	snap.IndexBars = map[domain.Timeframe][]domain.Bar{
		domain.TFDaily: seriesBars(70, 100, 1.2, 0.2, 1000),
		domain.TF15Min: seriesBars(30, 100, -0.05, 0.05, 1000),
	}
	sig, err := s.GenerateSignal(context.Background(), snap, newReading(domain.TFDaily, regime.TrendUp), sessionClock(16, 0))
	require.NoError(t, err)
	assert.Nil(t, sig, "instrument lagging the daily index should be rejected whatever the session tape does")
}

func TestSwingNeedsTrendingRegime(t *testing.T) {
	s := NewSwing()
	for _, label := range []regime.Label{regime.Range, regime.HighVolatility} {
		sig, err := s.GenerateSignal(context.Background(), swingSnapshot(), newReading(domain.TFDaily, label), sessionClock(16, 0))
		require.NoError(t, err)
		assert.Nil(t, sig, "regime %s should stand aside", label)
	}
}

func TestSwingExits(t *testing.T) {
	s := NewSwing()
	opened := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	flatAt110 := &domain.Snapshot{
		Symbol: "TCS",
		Quote:  domain.Quote{Symbol: "TCS", Price: 108},
		Bars:   map[domain.Timeframe][]domain.Bar{domain.TFDaily: seriesBars(30, 110, 0, 0.1, 1000)},
	}

	exit, reason := s.ShouldExit(context.Background(), swingPosition(112, 105, 120, opened), flatAt110, opened.Add(2*24*time.Hour))
	assert.True(t, exit)
	assert.Equal(t, "close below 20-day average", reason)

	exit, reason = s.ShouldExit(context.Background(), swingPosition(112, 105, 120, opened), quoteSnapshot(113), opened.Add(11*24*time.Hour))
	assert.True(t, exit)
	assert.Equal(t, "max holding period", reason)

	exit, reason = s.ShouldExit(context.Background(), swingPosition(112, 105, 120, opened), quoteSnapshot(104.8), opened.Add(24*time.Hour))
	assert.True(t, exit)
	assert.Equal(t, "stop loss", reason)

	exit, reason = s.ShouldExit(context.Background(), swingPosition(112, 105, 120, opened), quoteSnapshot(120.5), opened.Add(24*time.Hour))
	assert.True(t, exit)
	assert.Equal(t, "target reached", reason)
}

func TestSwingTrailsToTwentyDayAverage(t *testing.T) {
	s := NewSwing()
	opened := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	pos := swingPosition(100, 96, 110, opened)
	snap := &domain.Snapshot{
		Symbol: "TCS",
		Quote:  domain.Quote{Symbol: "TCS", Price: 106.5},
		Bars:   map[domain.Timeframe][]domain.Bar{domain.TFDaily: seriesBars(30, 101, 0, 0.1, 1000)},
	}

	exit, _ := s.ShouldExit(context.Background(), pos, snap, opened.Add(5*24*time.Hour))
	assert.False(t, exit, "a working winner stays on")
	assert.InDelta(t, 101, pos.Stop, 1e-9, "past 1.5R the stop rides the 20-day average")
}
