// Package perf tracks per-horizon trade outcomes and distills them into a
// 0-100 performance score used for capital reallocation.
package perf

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/indicators"
)

const (
	equityCurveCap = 100
	minSlopePoints = 5
	killMinTrades  = 50
	killCostRatio  = 0.5
)

// Metrics is the accumulated trade history for one horizon. Mutated only
// through Tracker.RecordTradeOutcome.
type Metrics struct {
	Horizon        domain.Horizon `json:"horizon"`
	TotalTrades    int            `json:"total_trades"`
	WinningTrades  int            `json:"winning_trades"`
	LosingTrades   int            `json:"losing_trades"`
	GrossProfit    float64        `json:"gross_profit"`
	GrossLoss      float64        `json:"gross_loss"` // negative or zero
	NetPnL         float64        `json:"net_pnl"`
	TotalCosts     float64        `json:"total_costs"`
	CostRatio      float64        `json:"cost_ratio"`
	MaxDrawdown    float64        `json:"max_drawdown"` // currency, peak to trough of the curve
	EquityCurve    []float64      `json:"equity_curve"`
	CurveSlope     float64        `json:"curve_slope"`
	LastTradeAt    time.Time      `json:"last_trade_at"`
}

// WinRate is winning trades over total, in percent.
func (m *Metrics) WinRate() float64 {
	if m.TotalTrades == 0 {
		return 0
	}
	return float64(m.WinningTrades) / float64(m.TotalTrades) * 100
}

// ProfitFactor is gross profit over absolute gross loss. A profitable book
// with no losses yet reads +Inf; an empty book reads 0.
func (m *Metrics) ProfitFactor() float64 {
	if m.GrossLoss == 0 {
		if m.GrossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return m.GrossProfit / math.Abs(m.GrossLoss)
}

// Tracker owns the metrics for all horizons.
type Tracker struct {
	mu      sync.Mutex
	metrics map[domain.Horizon]*Metrics
}

func NewTracker() *Tracker {
	t := &Tracker{metrics: make(map[domain.Horizon]*Metrics)}
	for _, h := range domain.Horizons {
		t.metrics[h] = &Metrics{Horizon: h}
	}
	return t
}

// RecordTradeOutcome folds one closed trade into the horizon's metrics:
// counters, gross P&L, costs, the equity curve (last 100 points), the
// curve's max drawdown and its regression slope.
func (t *Tracker) RecordTradeOutcome(h domain.Horizon, netPnL, costs, equity float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.metrics[h]

	m.TotalTrades++
	if netPnL > 0 {
		m.WinningTrades++
		m.GrossProfit += netPnL
	} else {
		m.LosingTrades++
		m.GrossLoss += netPnL
	}
	m.NetPnL += netPnL
	m.TotalCosts += costs
	if m.GrossProfit > 0 {
		m.CostRatio = m.TotalCosts / m.GrossProfit
	}

	m.EquityCurve = append(m.EquityCurve, equity)
	if len(m.EquityCurve) > equityCurveCap {
		m.EquityCurve = m.EquityCurve[len(m.EquityCurve)-equityCurveCap:]
	}
	m.MaxDrawdown = maxDrawdown(m.EquityCurve)
	if len(m.EquityCurve) >= minSlopePoints {
		m.CurveSlope = indicators.SlopeNormalized(m.EquityCurve)
	}
	m.LastTradeAt = time.Now()

	log.Info().
		Str("horizon", h.String()).
		Int("trades", m.TotalTrades).
		Float64("win_rate", m.WinRate()).
		Float64("net_pnl", m.NetPnL).
		Msg("Horizon metrics updated")
}

// Metrics returns a copy of the horizon's metrics.
func (t *Tracker) Metrics(h domain.Horizon) Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := *t.metrics[h]
	m.EquityCurve = append([]float64(nil), t.metrics[h].EquityCurve...)
	return m
}

// ShouldKill reports whether the horizon has proven itself harmful: at
// least 50 trades and either an overall losing profit factor or costs
// eating more than half the gross profit.
func (t *Tracker) ShouldKill(h domain.Horizon) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.metrics[h]

	if m.TotalTrades < killMinTrades {
		return false, ""
	}
	if pf := m.ProfitFactor(); pf < 1.0 {
		return true, "profit factor below 1.0"
	}
	if m.CostRatio > killCostRatio {
		return true, "cost ratio above 50% of gross profit"
	}
	return false, ""
}

func maxDrawdown(curve []float64) float64 {
	var peak, dd float64
	for i, v := range curve {
		if i == 0 || v > peak {
			peak = v
		}
		if d := peak - v; d > dd {
			dd = d
		}
	}
	return dd
}

