// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all Prometheus metrics for the engine.
type Registry struct {
	reg *prometheus.Registry

	// Scan cycle metrics
	CycleDuration prometheus.Histogram
	CyclesTotal   prometheus.Counter

	// Signal flow
	SignalsGenerated *prometheus.CounterVec
	SignalsRejected  *prometheus.CounterVec

	// Book state
	OpenPositions *prometheus.GaugeVec
	AllocationPct *prometheus.GaugeVec
	DrawdownPct   prometheus.Gauge
	EquityValue   prometheus.Gauge

	// Trade outcomes
	TradesClosed *prometheus.CounterVec
	RealizedPnL  *prometheus.CounterVec

	// Regime
	RegimeReadings *prometheus.CounterVec
}

// NewRegistry creates the engine metrics on a private registry so tests
// can run in parallel without duplicate registration panics.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "horizon_cycle_duration_seconds",
				Help:    "Duration of one full scan cycle in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
		),

		CyclesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "horizon_cycles_total",
				Help: "Total number of scan cycles executed",
			},
		),

		SignalsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horizon_signals_generated_total",
				Help: "Signals produced by strategy, by horizon",
			},
			[]string{"horizon"},
		),

		SignalsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horizon_signals_rejected_total",
				Help: "Signals discarded before entry, by horizon and reason",
			},
			[]string{"horizon", "reason"},
		),

		OpenPositions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "horizon_open_positions",
				Help: "Currently open positions by horizon",
			},
			[]string{"horizon"},
		),

		AllocationPct: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "horizon_allocation_percent",
				Help: "Current capital allocation percentage by horizon",
			},
			[]string{"horizon"},
		),

		DrawdownPct: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "horizon_drawdown_percent",
				Help: "Portfolio drawdown from the equity peak, in percent",
			},
		),

		EquityValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "horizon_equity_value",
				Help: "Current portfolio equity in account currency",
			},
		),

		TradesClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horizon_trades_closed_total",
				Help: "Closed trades by horizon and outcome",
			},
			[]string{"horizon", "outcome"},
		),

		RealizedPnL: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horizon_realized_pnl_total",
				Help: "Cumulative absolute realized PnL by horizon and sign",
			},
			[]string{"horizon", "sign"},
		),

		RegimeReadings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horizon_regime_readings_total",
				Help: "Regime classifications by timeframe and label",
			},
			[]string{"timeframe", "label"},
		),
	}

	r.reg.MustRegister(
		r.CycleDuration, r.CyclesTotal,
		r.SignalsGenerated, r.SignalsRejected,
		r.OpenPositions, r.AllocationPct, r.DrawdownPct, r.EquityValue,
		r.TradesClosed, r.RealizedPnL,
		r.RegimeReadings,
	)
	return r
}

// Gatherer exposes the underlying registry for the /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObserveTradeClosed folds one trade result into the outcome counters.
func (r *Registry) ObserveTradeClosed(horizon string, pnl float64) {
	outcome, sign := "win", "positive"
	if pnl <= 0 {
		outcome, sign = "loss", "negative"
	}
	r.TradesClosed.WithLabelValues(horizon, outcome).Inc()
	if pnl < 0 {
		pnl = -pnl
	}
	r.RealizedPnL.WithLabelValues(horizon, sign).Add(pnl)
}
