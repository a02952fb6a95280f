package alloc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/perf"
)

func percentSum(a *Allocator) float64 {
	sum := 0.0
	for _, h := range domain.Horizons {
		sum += a.Book(h).CurrentPct
	}
	return sum
}

// seedStrongBook feeds clean winners so the horizon scores well above 70.
func seedStrongBook(a *Allocator, h domain.Horizon, n int) {
	for i := 0; i < n; i++ {
		a.OnTradeClosed(domain.TradeResult{Horizon: h, NetPnL: 1200, Costs: 5, Released: 0})
	}
}

// seedWeakBook feeds steady losers so the horizon scores below 40.
func seedWeakBook(a *Allocator, h domain.Horizon, n int) {
	for i := 0; i < n; i++ {
		a.OnTradeClosed(domain.TradeResult{Horizon: h, NetPnL: -400, Costs: 5, Released: 0})
	}
}

func advanceClock(a *Allocator, d time.Duration) {
	base := time.Now()
	a.now = func() time.Time { return base.Add(d) }
}

func TestCheckAndRebalanceNotDue(t *testing.T) {
	a := newTestAllocator(t, 100000)
	changes, kills := a.CheckAndRebalance()
	assert.Nil(t, changes, "before 30 days the rebalance is a no-op")
	assert.Nil(t, kills)
}

func TestRebalanceShiftsTowardStrongBook(t *testing.T) {
	a := newTestAllocator(t, 200000)
	seedStrongBook(a, domain.Swing, 10)
	seedWeakBook(a, domain.Intraday, 10)

	advanceClock(a, 31*24*time.Hour)
	changes, _ := a.CheckAndRebalance()
	require.NotNil(t, changes)

	assert.Greater(t, a.Book(domain.Swing).CurrentPct, 35.0, "strong book gains allocation")
	assert.Less(t, a.Book(domain.Intraday).CurrentPct, 15.0, "weak book loses allocation")
	assert.InDelta(t, 100.0, percentSum(a), 1e-6, "percents must renormalize to 100")
	assertBookInvariant(t, a)

	for _, h := range domain.Horizons {
		b := a.Book(h)
		assert.InDelta(t, 200000*b.CurrentPct/100, b.Allocated, 1e-6)
	}
}

func TestRebalanceClampsSingleMonthMove(t *testing.T) {
	a := newTestAllocator(t, 200000)
	seedStrongBook(a, domain.Swing, 10)

	advanceClock(a, 31*24*time.Hour)
	changes, _ := a.CheckAndRebalance()
	require.NotNil(t, changes)

	for _, c := range changes {
		move := c.NewPct - c.OldPct
		if move < 0 {
			move = -move
		}
		assert.LessOrEqual(t, move, 10.0+1e-6, "%s moved more than the monthly cap", c.Horizon)
	}
}

func TestRebalanceIdempotentWhenRerun(t *testing.T) {
	a := newTestAllocator(t, 200000)
	advanceClock(a, 31*24*time.Hour)
	first, _ := a.CheckAndRebalance()
	require.NotNil(t, first)
	rerun, _ := a.CheckAndRebalance()
	assert.Nil(t, rerun, "immediate rerun must be a no-op")
}

func TestKillSwitchSweepBlocksBook(t *testing.T) {
	tracker := perf.NewTracker()
	a, err := New(DefaultConfig(), tracker, 200000)
	require.NoError(t, err)

	equity := 200000.0
	for i := 0; i < 60; i++ {
		pnl := 80.0
		if i%2 == 1 {
			pnl = -100.0 // PF 0.8 over 60 trades
		}
		equity += pnl
		tracker.RecordTradeOutcome(domain.Intraday, pnl, 2, equity)
	}

	advanceClock(a, 31*24*time.Hour)
	changes, kills := a.CheckAndRebalance()
	require.NotNil(t, changes)
	require.Len(t, kills, 1, "the tripped book is reported for event publication")
	assert.Equal(t, domain.Intraday, kills[0].Horizon)

	b := a.Book(domain.Intraday)
	assert.Equal(t, StateKilled, b.Status.State)
	assert.Contains(t, b.Status.Reason, "poor performance")
	assert.Error(t, a.Reserve(domain.Intraday, 100))

	a.ResetKill(domain.Intraday)
	assert.True(t, a.Book(domain.Intraday).Status.Open())
}
