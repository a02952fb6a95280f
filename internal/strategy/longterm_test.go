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

func compounderFundamentals(asOf time.Time) *domain.Fundamentals {
	return &domain.Fundamentals{
		Symbol:        "ASIANPAINT",
		AsOf:          asOf,
		ROE:           0.22,
		DebtToEquity:  0.5,
		RevenueCAGR3Y: 0.15,
		ProfitCAGR3Y:  0.20,
	}
}

func longTermSnapshot(now time.Time) *domain.Snapshot {
	return &domain.Snapshot{
		Symbol: "ASIANPAINT",
		Quote:  domain.Quote{Symbol: "ASIANPAINT", Price: 163.5},
		Bars: map[domain.Timeframe][]domain.Bar{
			domain.TFDaily: seriesBars(210, 100, 0.3, 0.1, 1000),
		},
		Fundamentals: compounderFundamentals(now.AddDate(0, 0, -30)),
	}
}

func longTermPosition(entry, stop, target, entryROE float64, openedAt time.Time) *domain.Position {
	sig := domain.NewSignal("ASIANPAINT", domain.LongTerm, domain.Long, entry, stop, target, "test", openedAt)
	sig.Meta = map[string]float64{"entry_roe": entryROE}
	return domain.OpenPosition(sig, 50000, openedAt)
}

func TestLongTermEntry(t *testing.T) {
	s := NewLongTerm()
	now := sessionClock(16, 0)
	sig, err := s.GenerateSignal(context.Background(), longTermSnapshot(now), newReading(domain.TFWeekly, regime.TrendUp), now)
	require.NoError(t, err)
	require.NotNil(t, sig, "a qualified compounder above the 200-day average should signal")

	assert.Equal(t, domain.LongTerm, sig.Horizon)
	assert.InDelta(t, 119.835, sig.Stop, 1e-6, "stop should be 10% under the 200-day average")
	assert.InDelta(t, 294.495, sig.Target, 1e-6, "target should be 3R")
	assert.InDelta(t, 0.22, sig.Meta["entry_roe"], 1e-9)
}

func TestLongTermQualityScreens(t *testing.T) {
	s := NewLongTerm()
	now := sessionClock(16, 0)

	for name, mutate := range map[string]func(*domain.Fundamentals){
		"revenue growth":  func(f *domain.Fundamentals) { f.RevenueCAGR3Y = 0.08 },
		"profit growth":   func(f *domain.Fundamentals) { f.ProfitCAGR3Y = 0.10 },
		"return on equity": func(f *domain.Fundamentals) { f.ROE = 0.12 },
		"leverage":         func(f *domain.Fundamentals) { f.DebtToEquity = 1.2 },
	} {
		snap := longTermSnapshot(now)
		mutate(snap.Fundamentals)
		sig, err := s.GenerateSignal(context.Background(), snap, nil, now)
		require.NoError(t, err)
		assert.Nil(t, sig, "%s screen should stand aside", name)
	}

	sig, err := s.GenerateSignal(context.Background(), longTermSnapshot(now), newReading(domain.TFWeekly, regime.HighVolatility), now)
	require.NoError(t, err)
	assert.Nil(t, sig, "a high-volatility weekly regime defers new entries")
}

func TestLongTermExitsOnDeterioration(t *testing.T) {
	s := NewLongTerm()
	opened := time.Date(2025, 9, 1, 16, 0, 0, 0, time.UTC)
	now := opened.AddDate(0, 6, 0)

	for name, tc := range map[string]struct {
		f      *domain.Fundamentals
		reason string
	}{
		"roe decay":         {&domain.Fundamentals{ROE: 0.14, DebtToEquity: 0.5}, "return on equity deterioration"},
		"leverage":          {&domain.Fundamentals{ROE: 0.20, DebtToEquity: 1.6}, "leverage deterioration"},
		"negative quarters": {&domain.Fundamentals{ROE: 0.20, DebtToEquity: 0.5, NegativeQuarters: 2}, "consecutive negative quarters"},
	} {
		snap := &domain.Snapshot{Quote: domain.Quote{Price: 150}, Fundamentals: tc.f}
		exit, reason := s.ShouldExit(context.Background(), longTermPosition(130, 110, 250, 0.22, opened), snap, now)
		assert.True(t, exit, name)
		assert.Equal(t, tc.reason, reason, name)
	}
}

func TestLongTermExitsOnSustainedTrendBreak(t *testing.T) {
	s := NewLongTerm()
	opened := time.Date(2025, 9, 1, 16, 0, 0, 0, time.UTC)
	snap := &domain.Snapshot{
		Quote: domain.Quote{Price: 126},
		Bars: map[domain.Timeframe][]domain.Bar{
			domain.TFDaily:  seriesBars(210, 100, 0.3, 0.1, 1000),
			domain.TFWeekly: seriesBars(10, 125, 0, 0.2, 1000),
		},
		Fundamentals: &domain.Fundamentals{ROE: 0.20, DebtToEquity: 0.5},
	}

	exit, reason := s.ShouldExit(context.Background(), longTermPosition(130, 119.8, 250, 0.22, opened), snap, opened.AddDate(0, 6, 0))
	assert.True(t, exit)
	assert.Equal(t, "sustained break of 200-day average", reason)
}

func TestLongTermRevisesTargetInsteadOfSelling(t *testing.T) {
	s := NewLongTerm()
	opened := time.Date(2025, 9, 1, 16, 0, 0, 0, time.UTC)
	pos := longTermPosition(163.5, 119.835, 294.495, 0.22, opened)

	exit, _ := s.ShouldExit(context.Background(), pos, quoteSnapshot(300), opened.AddDate(1, 0, 0))
	assert.False(t, exit, "a hit target is not a sell")
	assert.True(t, pos.TargetRevised)
	assert.InDelta(t, 360, pos.Target, 1e-9, "target stretches to 20% above the price")
}
