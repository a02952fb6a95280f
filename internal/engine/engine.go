// Package engine orchestrates one scan cycle: refresh the market regime
// on the reference index, fetch symbol snapshots concurrently, run each
// horizon's strategy, size and reserve capital, and hand accepted entries
// to the broker. Capital and position mutation is serialized; only the
// data fetches fan out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/alloc"
	"github.com/sawpanic/horizon/internal/broker"
	"github.com/sawpanic/horizon/internal/data"
	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/events"
	"github.com/sawpanic/horizon/internal/metrics"
	"github.com/sawpanic/horizon/internal/regime"
	"github.com/sawpanic/horizon/internal/strategy"
)

// Config carries the engine's scan universe and per-horizon sizing rules.
type Config struct {
	Symbols       []string
	IndexSymbol   string
	RiskFractions map[domain.Horizon]float64
	MaxOpen       map[domain.Horizon]int
	FetchWorkers  int
}

func DefaultConfig() Config {
	return Config{
		IndexSymbol: "NIFTY50",
		RiskFractions: map[domain.Horizon]float64{
			domain.Intraday: 0.007,
			domain.Swing:    0.015,
			domain.MidTerm:  0.020,
			domain.LongTerm: 0.030,
		},
		MaxOpen: map[domain.Horizon]int{
			domain.Intraday: 1,
			domain.Swing:    3,
			domain.MidTerm:  3,
			domain.LongTerm: 3,
		},
		FetchWorkers: 4,
	}
}

func (c Config) validate() error {
	if c.IndexSymbol == "" {
		return errors.New("engine: index symbol is required")
	}
	if c.FetchWorkers < 1 {
		return errors.New("engine: need at least one fetch worker")
	}
	for _, h := range domain.Horizons {
		if c.RiskFractions[h] <= 0 {
			return fmt.Errorf("engine: %s risk fraction must be positive", h)
		}
	}
	return nil
}

// barLimit is how much history one snapshot carries per timeframe.
var barLimit = map[domain.Timeframe]int{
	domain.TF15Min:  100,
	domain.TFDaily:  220,
	domain.TFWeekly: 30,
}

type Engine struct {
	cfg        Config
	provider   data.Provider
	regimes    *regime.Cache
	alloc      *alloc.Allocator
	strategies map[domain.Horizon]strategy.Strategy
	broker     broker.Broker
	sink       events.Sink
	metrics    *metrics.Registry
	now        func() time.Time

	mu        sync.Mutex
	positions map[string]*domain.Position
}

func New(cfg Config, provider data.Provider, regimes *regime.Cache, allocator *alloc.Allocator,
	strategies map[domain.Horizon]strategy.Strategy, brk broker.Broker, sink events.Sink,
	reg *metrics.Registry) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Engine{
		cfg:        cfg,
		provider:   provider,
		regimes:    regimes,
		alloc:      allocator,
		strategies: strategies,
		broker:     brk,
		sink:       sink,
		metrics:    reg,
		now:        time.Now,
		positions:  make(map[string]*domain.Position),
	}, nil
}

func positionKey(symbol string, h domain.Horizon) string { return symbol + "|" + string(h) }

// RunCycle executes one full scan. It is abortable between symbols; an
// aborted cycle leaves all completed entries in place.
func (e *Engine) RunCycle(ctx context.Context) error {
	started := e.now()
	defer func() {
		e.metrics.CycleDuration.Observe(e.now().Sub(started).Seconds())
		e.metrics.CyclesTotal.Inc()
	}()

	changes, kills := e.alloc.CheckAndRebalance()
	for _, k := range kills {
		e.sink.Emit(ctx, events.KillSwitch(k.Horizon, k.Reason, e.now()))
	}
	if len(changes) > 0 {
		log.Info().Int("changes", len(changes)).Msg("Capital rebalanced")
		e.sink.Emit(ctx, events.AllocationChanged(changes, e.now()))
	}
	e.publishBookGauges()

	readings := e.refreshRegime(ctx)
	bias := regime.TradingBias(readings)
	log.Info().Str("bias", string(bias)).Int("symbols", len(e.cfg.Symbols)).Msg("Scan cycle started")

	indexBars := e.fetchIndexBars(ctx)

	for snap := range e.fetchSnapshots(ctx, indexBars) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.evaluateSymbol(ctx, snap, readings)
	}
	return nil
}

// refreshRegime classifies the reference index once per cycle on every
// timeframe a horizon gates on. A failed timeframe yields a nil reading,
// which downstream treats as "no entry".
func (e *Engine) refreshRegime(ctx context.Context) map[domain.Timeframe]*regime.Reading {
	readings := make(map[domain.Timeframe]*regime.Reading)
	for _, tf := range []domain.Timeframe{domain.TF15Min, domain.TFDaily, domain.TFWeekly} {
		r, err := e.regimes.Reading(ctx, e.cfg.IndexSymbol, tf)
		if err != nil {
			log.Warn().Err(err).Str("timeframe", string(tf)).Msg("Regime classification unavailable")
			continue
		}
		readings[tf] = r
		e.metrics.RegimeReadings.WithLabelValues(string(tf), string(r.Label)).Inc()
	}
	return readings
}

// fetchIndexBars pulls the reference index once per cycle on each
// timeframe the strategies compare against: the running session for the
// day-type checklist, dailies for relative strength.
func (e *Engine) fetchIndexBars(ctx context.Context) map[domain.Timeframe][]domain.Bar {
	out := make(map[domain.Timeframe][]domain.Bar, 2)
	for tf, limit := range map[domain.Timeframe]int{domain.TF15Min: 30, domain.TFDaily: 30} {
		bars, err := e.provider.Bars(ctx, e.cfg.IndexSymbol, tf, limit)
		if err != nil {
			log.Debug().Err(err).Str("timeframe", string(tf)).Msg("Index bars unavailable this cycle")
			continue
		}
		out[tf] = bars
	}
	return out
}

// fetchSnapshots fans symbol fetches out over the worker pool and yields
// completed snapshots. Symbols the feed has nothing for are skipped.
func (e *Engine) fetchSnapshots(ctx context.Context, indexBars map[domain.Timeframe][]domain.Bar) <-chan *domain.Snapshot {
	out := make(chan *domain.Snapshot)
	jobs := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < e.cfg.FetchWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				if snap := e.fetchSnapshot(ctx, symbol, indexBars); snap != nil {
					select {
					case out <- snap:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, s := range e.cfg.Symbols {
			select {
			case jobs <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (e *Engine) fetchSnapshot(ctx context.Context, symbol string, indexBars map[domain.Timeframe][]domain.Bar) *domain.Snapshot {
	quote, err := e.provider.Quote(ctx, symbol)
	if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("Quote unavailable, skipping symbol")
		return nil
	}
	snap := &domain.Snapshot{
		Symbol:    symbol,
		Quote:     quote,
		Bars:      make(map[domain.Timeframe][]domain.Bar, len(barLimit)),
		IndexBars: indexBars,
	}
	for tf, limit := range barLimit {
		bars, err := e.provider.Bars(ctx, symbol, tf, limit)
		if err != nil {
			if !errors.Is(err, data.ErrNoData) {
				log.Debug().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).Msg("History unavailable")
			}
			continue
		}
		snap.Bars[tf] = bars
	}
	if f, err := e.provider.Fundamentals(ctx, symbol); err == nil {
		snap.Fundamentals = f
	}
	return snap
}

func (e *Engine) evaluateSymbol(ctx context.Context, snap *domain.Snapshot, readings map[domain.Timeframe]*regime.Reading) {
	now := e.now()
	for _, h := range domain.Horizons {
		strat, ok := e.strategies[h]
		if !ok {
			continue
		}
		if e.hasPosition(snap.Symbol, h) {
			continue
		}
		reading := readings[h.RegimeTimeframe()]
		if !regime.AllowsEntry(reading, h) {
			e.metrics.SignalsRejected.WithLabelValues(string(h), "regime").Inc()
			continue
		}
		if e.openCount(h) >= e.cfg.MaxOpen[h] {
			e.metrics.SignalsRejected.WithLabelValues(string(h), "max_positions").Inc()
			continue
		}
		if open, reason := e.alloc.BookStatus(h); !open {
			log.Debug().Str("horizon", h.String()).Str("reason", reason).Msg("Book closed for entries")
			e.metrics.SignalsRejected.WithLabelValues(string(h), "book_closed").Inc()
			continue
		}

		sig, err := strat.GenerateSignal(ctx, snap, reading, now)
		if err != nil {
			log.Error().Err(err).Str("symbol", snap.Symbol).Str("horizon", h.String()).Msg("Strategy failed")
			continue
		}
		if sig == nil {
			continue
		}
		e.metrics.SignalsGenerated.WithLabelValues(string(h)).Inc()
		e.openFromSignal(ctx, sig, reading, now)
	}
}

// openFromSignal sizes the entry against the book, reserves capital and
// places the order. Any refusal along the way puts the capital back.
func (e *Engine) openFromSignal(ctx context.Context, sig *domain.Signal, reading *regime.Reading, now time.Time) {
	h := sig.Horizon
	riskPerShare := sig.RiskPerShare()
	if riskPerShare <= 0 {
		e.metrics.SignalsRejected.WithLabelValues(string(h), "bad_stop").Inc()
		return
	}

	available := e.alloc.AvailableCapital(h)
	riskAmount := available * e.cfg.RiskFractions[h] * regime.SizeMultiplier(reading)
	if budget := e.alloc.RiskBudget(h); riskAmount > budget {
		riskAmount = budget
	}
	qty := int(riskAmount / riskPerShare)
	if cost := float64(qty) * sig.Entry; cost > available {
		qty = int(available / sig.Entry)
	}
	if qty < 1 {
		e.metrics.SignalsRejected.WithLabelValues(string(h), "too_small").Inc()
		return
	}
	sig.Quantity = qty
	cost := float64(qty) * sig.Entry

	if err := e.alloc.Reserve(h, cost); err != nil {
		log.Warn().Err(err).Str("symbol", sig.Symbol).Msg("Entry refused by allocator")
		e.metrics.SignalsRejected.WithLabelValues(string(h), "capital").Inc()
		return
	}
	order, err := e.broker.Place(ctx, sig)
	if err != nil {
		e.alloc.Release(h, cost)
		log.Warn().Err(err).Str("symbol", sig.Symbol).Msg("Order rejected by broker")
		e.metrics.SignalsRejected.WithLabelValues(string(h), "broker").Inc()
		return
	}

	pos := domain.OpenPosition(sig, cost, now)
	pos.Entry = order.FillPrice
	pos.BrokerOrderID = order.ID

	e.mu.Lock()
	e.positions[positionKey(pos.Symbol, h)] = pos
	e.mu.Unlock()

	e.metrics.OpenPositions.WithLabelValues(string(h)).Inc()
	e.sink.Emit(ctx, events.PositionOpened(pos, now))
	log.Info().
		Str("symbol", pos.Symbol).
		Str("horizon", h.String()).
		Int("qty", qty).
		Float64("entry", pos.Entry).
		Float64("stop", pos.Stop).
		Float64("target", pos.Target).
		Str("reason", sig.Reason).
		Msg("Position opened")
}

func (e *Engine) hasPosition(symbol string, h domain.Horizon) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.positions[positionKey(symbol, h)]
	return ok
}

func (e *Engine) openCount(h domain.Horizon) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, p := range e.positions {
		if p.Horizon == h {
			n++
		}
	}
	return n
}

// Positions returns copies of the open book, for the status surface.
func (e *Engine) Positions() []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	return out
}

func (e *Engine) publishBookGauges() {
	summary := e.alloc.Summary()
	for _, b := range summary.Books {
		e.metrics.AllocationPct.WithLabelValues(string(b.Horizon)).Set(b.CurrentPct)
	}
	e.metrics.DrawdownPct.Set(summary.DrawdownPct)
	e.metrics.EquityValue.Set(summary.CurrentEquity)
}

// Run drives scan and exit cycles until the context ends.
func (e *Engine) Run(ctx context.Context, scanInterval, exitInterval time.Duration) error {
	scan := time.NewTicker(scanInterval)
	defer scan.Stop()
	exits := time.NewTicker(exitInterval)
	defer exits.Stop()

	if err := e.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Scan cycle failed")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-scan.C:
			if err := e.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Scan cycle failed")
			}
		case <-exits.C:
			e.PollExits(ctx)
		}
	}
}
