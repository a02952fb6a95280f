package domain

import (
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Signal is a fully-specified entry proposal from a horizon strategy.
// Quantity is zero until the orchestrator sizes it against the book's
// capital and risk budget.
type Signal struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Horizon     Horizon   `json:"horizon"`
	Direction   Direction `json:"direction"`
	Entry       float64   `json:"entry"`
	Stop        float64   `json:"stop"`
	Target      float64   `json:"target"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
	GeneratedAt time.Time `json:"generated_at"`

	// Meta carries horizon-specific numbers (entry-time fundamentals,
	// indicator values) that exit rules compare against later.
	Meta map[string]float64 `json:"meta,omitempty"`
}

func NewSignal(symbol string, h Horizon, dir Direction, entry, stop, target float64, reason string, now time.Time) *Signal {
	return &Signal{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Horizon:     h,
		Direction:   dir,
		Entry:       entry,
		Stop:        stop,
		Target:      target,
		Reason:      reason,
		GeneratedAt: now,
	}
}

// RiskPerShare is the entry-to-stop distance. Always positive for a sane
// signal; zero or negative signals are rejected by the orchestrator.
func (s *Signal) RiskPerShare() float64 {
	if s.Direction == Short {
		return s.Stop - s.Entry
	}
	return s.Entry - s.Stop
}

// RewardPerShare is the entry-to-target distance.
func (s *Signal) RewardPerShare() float64 {
	if s.Direction == Short {
		return s.Entry - s.Target
	}
	return s.Target - s.Entry
}

// RiskReward is reward over risk, 0 when risk is not positive.
func (s *Signal) RiskReward() float64 {
	r := s.RiskPerShare()
	if r <= 0 {
		return 0
	}
	return s.RewardPerShare() / r
}

// Position is one open trade. Exactly one position may exist per
// (symbol, horizon) pair; the engine's book enforces that.
type Position struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Horizon       Horizon   `json:"horizon"`
	Direction     Direction `json:"direction"`
	Entry         float64   `json:"entry"`
	Stop          float64   `json:"stop"`
	Target        float64   `json:"target"`
	Quantity      int       `json:"quantity"`
	Reserved      float64   `json:"reserved"`
	OpenedAt      time.Time `json:"opened_at"`
	PeakPrice     float64   `json:"peak_price"`
	TargetRevised bool      `json:"target_revised"`
	BrokerOrderID string    `json:"broker_order_id,omitempty"`

	Meta map[string]float64 `json:"meta,omitempty"`
}

func OpenPosition(sig *Signal, reserved float64, now time.Time) *Position {
	return &Position{
		ID:        uuid.NewString(),
		Symbol:    sig.Symbol,
		Horizon:   sig.Horizon,
		Direction: sig.Direction,
		Entry:     sig.Entry,
		Stop:      sig.Stop,
		Target:    sig.Target,
		Quantity:  sig.Quantity,
		Reserved:  reserved,
		OpenedAt:  now,
		PeakPrice: sig.Entry,
		Meta:      sig.Meta,
	}
}

// RiskPerShare mirrors Signal.RiskPerShare for the open trade's original
// entry and current stop.
func (p *Position) RiskPerShare() float64 {
	if p.Direction == Short {
		return p.Stop - p.Entry
	}
	return p.Entry - p.Stop
}

// RMultiple is the unrealized gain at price expressed in initial-risk units.
func (p *Position) RMultiple(price float64) float64 {
	risk := p.RiskPerShare()
	if risk <= 0 {
		return 0
	}
	if p.Direction == Short {
		return (p.Entry - price) / risk
	}
	return (price - p.Entry) / risk
}

// TradeResult is the outcome of a closed position, as fed to the
// performance tracker and the capital allocator.
type TradeResult struct {
	Symbol     string    `json:"symbol"`
	Horizon    Horizon   `json:"horizon"`
	Direction  Direction `json:"direction"`
	NetPnL     float64   `json:"net_pnl"`
	Costs      float64   `json:"costs"`
	Released   float64   `json:"released"`
	ExitReason string    `json:"exit_reason"`
	ClosedAt   time.Time `json:"closed_at"`
}
