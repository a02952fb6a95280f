package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/horizon/internal/alloc"
	"github.com/sawpanic/horizon/internal/broker"
	"github.com/sawpanic/horizon/internal/data"
	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/events"
	"github.com/sawpanic/horizon/internal/metrics"
	"github.com/sawpanic/horizon/internal/perf"
	"github.com/sawpanic/horizon/internal/regime"
	"github.com/sawpanic/horizon/internal/strategy"
)

// fakeProvider serves quotes from a mutable price map and has no history.
type fakeProvider struct {
	mu     sync.Mutex
	prices map[string]float64
}

func newFakeProvider(prices map[string]float64) *fakeProvider {
	return &fakeProvider{prices: prices}
}

func (f *fakeProvider) setPrice(symbol string, price float64) {
	f.mu.Lock()
	f.prices[symbol] = price
	f.mu.Unlock()
}

func (f *fakeProvider) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.prices[symbol]
	if !ok {
		return domain.Quote{}, data.ErrNoData
	}
	return domain.Quote{Symbol: symbol, Price: price}, nil
}

func (f *fakeProvider) Bars(context.Context, string, domain.Timeframe, int) ([]domain.Bar, error) {
	return nil, data.ErrNoData
}

func (f *fakeProvider) Fundamentals(context.Context, string) (*domain.Fundamentals, error) {
	return nil, data.ErrNoData
}

// scriptedStrategy signals and exits from fixed tables, so the tests
// exercise the orchestration rather than any setup logic.
type scriptedStrategy struct {
	h     domain.Horizon
	entry map[string][3]float64 // symbol -> entry, stop, target
	exits map[string]string
}

func (s *scriptedStrategy) Horizon() domain.Horizon { return s.h }

func (s *scriptedStrategy) GenerateSignal(_ context.Context, snap *domain.Snapshot, _ *regime.Reading, now time.Time) (*domain.Signal, error) {
	levels, ok := s.entry[snap.Symbol]
	if !ok {
		return nil, nil
	}
	return domain.NewSignal(snap.Symbol, s.h, domain.Long, levels[0], levels[1], levels[2], "scripted", now), nil
}

func (s *scriptedStrategy) ShouldExit(_ context.Context, pos *domain.Position, _ *domain.Snapshot, _ time.Time) (bool, string) {
	if reason, ok := s.exits[pos.Symbol]; ok && reason != "" {
		return true, reason
	}
	return false, ""
}

type recordingSink struct {
	mu    sync.Mutex
	kinds []events.Kind
}

func (s *recordingSink) Emit(_ context.Context, ev events.Event) {
	s.mu.Lock()
	s.kinds = append(s.kinds, ev.Kind)
	s.mu.Unlock()
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) recorded() []events.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Kind(nil), s.kinds...)
}

func regimeBars(n int, start, growthPct float64) []domain.Bar {
	t0 := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	price := start
	for i := range bars {
		next := price * (1 + growthPct/100)
		bars[i] = domain.Bar{
			Time:   t0.Add(time.Duration(i) * 15 * time.Minute),
			Open:   price,
			Close:  next,
			High:   next * 1.001,
			Low:    price * 0.999,
			Volume: 1000,
		}
		price = next
	}
	return bars
}

func trendingSource(ctx context.Context, symbol string, tf domain.Timeframe) ([]domain.Bar, error) {
	return regimeBars(220, 100, 0.5), nil
}

func flatSource(ctx context.Context, symbol string, tf domain.Timeframe) ([]domain.Bar, error) {
	return regimeBars(220, 100, 0), nil
}

type testRig struct {
	engine *Engine
	alloc  *alloc.Allocator
	broker *broker.Paper
	sink   *recordingSink
}

func newTestRig(t *testing.T, cfg Config, provider data.Provider, source regime.BarSource, strategies map[domain.Horizon]strategy.Strategy) *testRig {
	t.Helper()
	allocator, err := alloc.New(alloc.DefaultConfig(), perf.NewTracker(), 100000)
	require.NoError(t, err)
	paper := broker.NewPaper(0, 0)
	sink := &recordingSink{}
	eng, err := New(cfg, provider, regime.NewCache(regime.NewClassifier(), source), allocator, strategies, paper, sink, metrics.NewRegistry())
	require.NoError(t, err)
	return &testRig{engine: eng, alloc: allocator, broker: paper, sink: sink}
}

func swingOnly(entry map[string][3]float64, exits map[string]string) map[domain.Horizon]strategy.Strategy {
	return map[domain.Horizon]strategy.Strategy{
		domain.Swing: &scriptedStrategy{h: domain.Swing, entry: entry, exits: exits},
	}
}

func TestEngineOpensSizesAndClosesPosition(t *testing.T) {
	provider := newFakeProvider(map[string]float64{"TCS": 100})
	exits := map[string]string{}
	cfg := DefaultConfig()
	cfg.Symbols = []string{"TCS"}
	rig := newTestRig(t, cfg, provider, trendingSource, swingOnly(map[string][3]float64{"TCS": {100, 98, 104}}, exits))
	ctx := context.Background()

	require.NoError(t, rig.engine.RunCycle(ctx))

	positions := rig.engine.Positions()
	require.Len(t, positions, 1)
	pos := positions[0]
	assert.Equal(t, domain.Swing, pos.Horizon)
	// 35k book, 1.5% risk, 2.0 risk per share: 262 shares.
	assert.Equal(t, 262, pos.Quantity)
	assert.InDelta(t, 26200, pos.Reserved, 1e-9)
	assert.InDelta(t, 8800, rig.alloc.Book(domain.Swing).Available, 1e-9)

	// Target trades through; the scripted exit closes the position.
	provider.setPrice("TCS", 104)
	exits["TCS"] = "target reached"
	rig.engine.PollExits(ctx)

	assert.Empty(t, rig.engine.Positions())
	summary := rig.alloc.Summary()
	assert.InDelta(t, 101048, summary.CurrentEquity, 1e-9, "4 points on 262 shares")
	assert.InDelta(t, 35000, rig.alloc.Book(domain.Swing).Available, 1e-9, "reserved capital returns on close")
	assert.Equal(t, []events.Kind{events.KindPositionOpened, events.KindPositionClosed}, rig.sink.recorded())
}

func TestEngineHoldsOnePositionPerSymbolHorizon(t *testing.T) {
	provider := newFakeProvider(map[string]float64{"TCS": 100})
	cfg := DefaultConfig()
	cfg.Symbols = []string{"TCS"}
	rig := newTestRig(t, cfg, provider, trendingSource, swingOnly(map[string][3]float64{"TCS": {100, 98, 104}}, nil))
	ctx := context.Background()

	require.NoError(t, rig.engine.RunCycle(ctx))
	require.NoError(t, rig.engine.RunCycle(ctx))

	assert.Len(t, rig.engine.Positions(), 1, "a held symbol must not be re-entered")
	assert.InDelta(t, 8800, rig.alloc.Book(domain.Swing).Available, 1e-9)
}

func TestEngineEnforcesMaxOpenPerHorizon(t *testing.T) {
	provider := newFakeProvider(map[string]float64{"TCS": 100, "INFY": 100})
	cfg := DefaultConfig()
	cfg.Symbols = []string{"TCS", "INFY"}
	cfg.MaxOpen[domain.Swing] = 1
	rig := newTestRig(t, cfg, provider, trendingSource, swingOnly(map[string][3]float64{
		"TCS":  {100, 98, 104},
		"INFY": {100, 98, 104},
	}, nil))

	require.NoError(t, rig.engine.RunCycle(context.Background()))
	assert.Len(t, rig.engine.Positions(), 1, "the horizon cap holds across symbols")
}

func TestEngineBlocksSwingEntriesInRange(t *testing.T) {
	provider := newFakeProvider(map[string]float64{"TCS": 100})
	cfg := DefaultConfig()
	cfg.Symbols = []string{"TCS"}
	rig := newTestRig(t, cfg, provider, flatSource, swingOnly(map[string][3]float64{"TCS": {100, 98, 104}}, nil))

	require.NoError(t, rig.engine.RunCycle(context.Background()))
	assert.Empty(t, rig.engine.Positions(), "a ranging index blocks swing entries before the strategy runs")
}

func TestEngineCapsQuantityByAvailableCapital(t *testing.T) {
	provider := newFakeProvider(map[string]float64{"TCS": 100})
	cfg := DefaultConfig()
	cfg.Symbols = []string{"TCS"}
	// A one-point stop sizes 525 shares by risk; the 35k book only buys 350.
	rig := newTestRig(t, cfg, provider, trendingSource, swingOnly(map[string][3]float64{"TCS": {100, 99, 104}}, nil))

	require.NoError(t, rig.engine.RunCycle(context.Background()))
	positions := rig.engine.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, 350, positions[0].Quantity, "the whole book at 100 a share")
	assert.InDelta(t, 0, rig.alloc.Book(domain.Swing).Available, 1e-6)
}

func TestEngineAbortedCycleOpensNothing(t *testing.T) {
	provider := newFakeProvider(map[string]float64{"TCS": 100})
	cfg := DefaultConfig()
	cfg.Symbols = []string{"TCS"}
	rig := newTestRig(t, cfg, provider, trendingSource, swingOnly(map[string][3]float64{"TCS": {100, 98, 104}}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = rig.engine.RunCycle(ctx)
	assert.Empty(t, rig.engine.Positions(), "a cancelled cycle evaluates no symbols")
}

// indexHistoryProvider adds reference-index history to the quote-only fake.
type indexHistoryProvider struct {
	*fakeProvider
	index string
}

func (p *indexHistoryProvider) Bars(_ context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	if symbol != p.index {
		return nil, data.ErrNoData
	}
	return regimeBars(limit, 100, 0.5), nil
}

// timeframeRecorder notes which index timeframes each snapshot carried.
type timeframeRecorder struct {
	mu   sync.Mutex
	seen map[domain.Timeframe]int
}

func (r *timeframeRecorder) Horizon() domain.Horizon { return domain.Swing }

func (r *timeframeRecorder) GenerateSignal(_ context.Context, snap *domain.Snapshot, _ *regime.Reading, _ time.Time) (*domain.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tf := range []domain.Timeframe{domain.TF15Min, domain.TFDaily} {
		r.seen[tf] = len(snap.IndexBarsFor(tf))
	}
	return nil, nil
}

func (r *timeframeRecorder) ShouldExit(context.Context, *domain.Position, *domain.Snapshot, time.Time) (bool, string) {
	return false, ""
}

func TestEngineSnapshotCarriesIndexBarsPerTimeframe(t *testing.T) {
	provider := &indexHistoryProvider{
		fakeProvider: newFakeProvider(map[string]float64{"TCS": 100}),
		index:        "NIFTY50",
	}
	cfg := DefaultConfig()
	cfg.Symbols = []string{"TCS"}
	rec := &timeframeRecorder{seen: make(map[domain.Timeframe]int)}
	rig := newTestRig(t, cfg, provider, trendingSource, map[domain.Horizon]strategy.Strategy{domain.Swing: rec})

	require.NoError(t, rig.engine.RunCycle(context.Background()))

	assert.Equal(t, 30, rec.seen[domain.TF15Min], "session index bars for the day-type checks")
	assert.Equal(t, 30, rec.seen[domain.TFDaily], "daily index bars so relative strength compares like with like")
}

func TestEnginePublishesKillSwitchEvents(t *testing.T) {
	tracker := perf.NewTracker()
	equity := 100000.0
	for i := 0; i < 60; i++ {
		pnl := 80.0
		if i%2 == 1 {
			pnl = -100.0 // PF 0.8 over 60 trades trips the kill switch
		}
		equity += pnl
		tracker.RecordTradeOutcome(domain.Intraday, pnl, 2, equity)
	}

	allocCfg := alloc.DefaultConfig()
	allocCfg.RebalanceInterval = 0
	allocator, err := alloc.New(allocCfg, tracker, 100000)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Symbols = []string{"TCS"}
	sink := &recordingSink{}
	eng, err := New(cfg, newFakeProvider(map[string]float64{"TCS": 100}),
		regime.NewCache(regime.NewClassifier(), trendingSource), allocator,
		swingOnly(nil, nil), broker.NewPaper(0, 0), sink, metrics.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, eng.RunCycle(context.Background()))

	kinds := sink.recorded()
	assert.Contains(t, kinds, events.KindKillSwitch, "a tripped book must be journaled")
	assert.Contains(t, kinds, events.KindAllocationChanged)
	assert.Equal(t, alloc.StateKilled, allocator.Book(domain.Intraday).Status.State)
}
