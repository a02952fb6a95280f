package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/events"
)

// PollExits walks the open book, asks each position's strategy whether to
// close, and settles closures through the broker and the allocator.
// Strategies may trail stops or revise targets in place while declining
// to exit.
func (e *Engine) PollExits(ctx context.Context) {
	for _, pos := range e.openPositions() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		strat, ok := e.strategies[pos.Horizon]
		if !ok {
			continue
		}
		snap := e.fetchSnapshot(ctx, pos.Symbol, nil)
		if snap == nil || snap.Quote.Price <= 0 {
			continue
		}

		e.mu.Lock()
		exit, reason := strat.ShouldExit(ctx, pos, snap, e.now())
		e.mu.Unlock()
		if !exit {
			continue
		}
		e.closePosition(ctx, pos, snap.Quote.Price, reason)
	}
}

func (e *Engine) openPositions() []*domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p)
	}
	return out
}

func (e *Engine) closePosition(ctx context.Context, pos *domain.Position, price float64, reason string) {
	now := e.now()
	fill, err := e.broker.Exit(ctx, pos, price, now)
	if err != nil {
		log.Error().Err(err).Str("symbol", pos.Symbol).Str("horizon", pos.Horizon.String()).Msg("Exit order failed, keeping position")
		return
	}

	gross := (fill.FillPrice - pos.Entry) * float64(pos.Quantity)
	if pos.Direction == domain.Short {
		gross = (pos.Entry - fill.FillPrice) * float64(pos.Quantity)
	}
	result := domain.TradeResult{
		Symbol:     pos.Symbol,
		Horizon:    pos.Horizon,
		Direction:  pos.Direction,
		NetPnL:     gross - fill.Costs,
		Costs:      fill.Costs,
		Released:   pos.Reserved,
		ExitReason: reason,
		ClosedAt:   now,
	}

	e.mu.Lock()
	delete(e.positions, positionKey(pos.Symbol, pos.Horizon))
	e.mu.Unlock()

	e.alloc.OnTradeClosed(result)
	e.metrics.OpenPositions.WithLabelValues(string(pos.Horizon)).Dec()
	e.metrics.ObserveTradeClosed(string(pos.Horizon), result.NetPnL)
	e.publishBookGauges()
	e.sink.Emit(ctx, events.PositionClosed(result, now))

	log.Info().
		Str("symbol", pos.Symbol).
		Str("horizon", pos.Horizon.String()).
		Str("exit_reason", reason).
		Float64("net_pnl", result.NetPnL).
		Float64("costs", result.Costs).
		Msg("Position closed")
}
