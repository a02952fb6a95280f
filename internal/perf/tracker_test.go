package perf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/horizon/internal/domain"
)

func TestRecordTradeOutcomeCounts(t *testing.T) {
	tr := NewTracker()
	tr.RecordTradeOutcome(domain.Intraday, 200, 10, 10200)
	tr.RecordTradeOutcome(domain.Intraday, -100, 10, 10100)
	tr.RecordTradeOutcome(domain.Intraday, 0, 10, 10100)

	m := tr.Metrics(domain.Intraday)
	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades, "zero-P&L trades count as losses")
	assert.InDelta(t, 200.0, m.GrossProfit, 1e-9)
	assert.InDelta(t, -100.0, m.GrossLoss, 1e-9)
	assert.InDelta(t, 100.0, m.NetPnL, 1e-9)
	assert.InDelta(t, 30.0, m.TotalCosts, 1e-9)
	assert.InDelta(t, 2.0, m.ProfitFactor(), 1e-9)
	assert.InDelta(t, 100.0/3*1, m.WinRate(), 1e-6)
}

func TestProfitFactorNoLosses(t *testing.T) {
	tr := NewTracker()
	tr.RecordTradeOutcome(domain.Swing, 500, 5, 10500)
	m := tr.Metrics(domain.Swing)
	assert.True(t, math.IsInf(m.ProfitFactor(), 1))
}

func TestEquityCurveCappedAt100Points(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 150; i++ {
		tr.RecordTradeOutcome(domain.Swing, 10, 1, 10000+float64(i)*10)
	}
	m := tr.Metrics(domain.Swing)
	assert.Len(t, m.EquityCurve, 100)
	assert.InDelta(t, 10000+149*10, m.EquityCurve[99], 1e-9, "newest point kept, oldest dropped")
}

func TestCurveSlopeFollowsEquityDirection(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 6; i++ {
		tr.RecordTradeOutcome(domain.Swing, 100, 1, 10000+float64(i+1)*100)
	}
	assert.Greater(t, tr.Metrics(domain.Swing).CurveSlope, 0.0, "a rising curve slopes up")

	down := NewTracker()
	for i := 0; i < 6; i++ {
		down.RecordTradeOutcome(domain.Swing, -100, 1, 10000-float64(i+1)*100)
	}
	assert.Less(t, down.Metrics(domain.Swing).CurveSlope, 0.0)
}

func TestMaxDrawdownFromCurve(t *testing.T) {
	tr := NewTracker()
	for _, eq := range []float64{10000, 11000, 9000, 9500, 12000, 10500} {
		tr.RecordTradeOutcome(domain.MidTerm, 0, 0, eq)
	}
	m := tr.Metrics(domain.MidTerm)
	assert.InDelta(t, 2000.0, m.MaxDrawdown, 1e-9, "peak 11000 to trough 9000")
}

func TestShouldKillRequiresSampleSize(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 40; i++ {
		tr.RecordTradeOutcome(domain.Intraday, -50, 2, 10000-float64(i)*50)
	}
	kill, _ := tr.ShouldKill(domain.Intraday)
	assert.False(t, kill, "40 trades is under the minimum sample")
}

func TestShouldKillOnLosingProfitFactor(t *testing.T) {
	tr := NewTracker()
	equity := 10000.0
	for i := 0; i < 60; i++ {
		pnl := 80.0 // 30 wins of 80 vs 30 losses of 100: PF 0.8
		if i%2 == 1 {
			pnl = -100.0
		}
		equity += pnl
		tr.RecordTradeOutcome(domain.Intraday, pnl, 2, equity)
	}
	kill, reason := tr.ShouldKill(domain.Intraday)
	assert.True(t, kill)
	assert.Contains(t, reason, "profit factor")
}

func TestShouldKillOnCostRatio(t *testing.T) {
	tr := NewTracker()
	equity := 10000.0
	for i := 0; i < 50; i++ {
		equity += 100
		tr.RecordTradeOutcome(domain.Swing, 100, 60, equity) // costs eat 60% of gross profit
	}
	kill, reason := tr.ShouldKill(domain.Swing)
	assert.True(t, kill)
	assert.Contains(t, reason, "cost ratio")
}

func TestHealthyHorizonNotKilled(t *testing.T) {
	tr := NewTracker()
	equity := 10000.0
	for i := 0; i < 60; i++ {
		pnl := 150.0 // PF 1.5, costs 2%
		if i%3 == 2 {
			pnl = -100.0
		}
		equity += pnl
		tr.RecordTradeOutcome(domain.LongTerm, pnl, 3, equity)
	}
	kill, _ := tr.ShouldKill(domain.LongTerm)
	assert.False(t, kill)
}
