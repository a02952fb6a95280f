// Package broker is the order boundary. The engine only ever speaks to
// the Broker interface; the paper implementation fills at the quoted
// price with configurable slippage and commission so simulated results
// carry realistic friction.
package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/domain"
)

var (
	ErrRejected     = errors.New("order rejected")
	ErrUnknownOrder = errors.New("unknown order")
)

// Order is an accepted entry order with its fill.
type Order struct {
	ID        string           `json:"id"`
	Symbol    string           `json:"symbol"`
	Horizon   domain.Horizon   `json:"horizon"`
	Direction domain.Direction `json:"direction"`
	Quantity  int              `json:"quantity"`
	FillPrice float64          `json:"fill_price"`
	PlacedAt  time.Time        `json:"placed_at"`
}

// Fill is the exit execution for a position.
type Fill struct {
	OrderID   string    `json:"order_id"`
	FillPrice float64   `json:"fill_price"`
	Costs     float64   `json:"costs"`
	FilledAt  time.Time `json:"filled_at"`
}

type Broker interface {
	Place(ctx context.Context, sig *domain.Signal) (Order, error)
	Exit(ctx context.Context, pos *domain.Position, price float64, now time.Time) (Fill, error)
}

// Paper simulates execution. Slippage is applied against the trade on
// both legs; commission is charged on both notionals at exit.
type Paper struct {
	commissionBps float64
	slippageBps   float64

	mu     sync.Mutex
	orders map[string]Order
}

func NewPaper(commissionBps, slippageBps float64) *Paper {
	return &Paper{
		commissionBps: commissionBps,
		slippageBps:   slippageBps,
		orders:        make(map[string]Order),
	}
}

func (p *Paper) Place(ctx context.Context, sig *domain.Signal) (Order, error) {
	if sig.Quantity < 1 || sig.Entry <= 0 {
		return Order{}, ErrRejected
	}
	slip := sig.Entry * p.slippageBps / 10000
	fill := sig.Entry + slip
	if sig.Direction == domain.Short {
		fill = sig.Entry - slip
	}
	order := Order{
		ID:        uuid.NewString(),
		Symbol:    sig.Symbol,
		Horizon:   sig.Horizon,
		Direction: sig.Direction,
		Quantity:  sig.Quantity,
		FillPrice: fill,
		PlacedAt:  sig.GeneratedAt,
	}
	p.mu.Lock()
	p.orders[order.ID] = order
	p.mu.Unlock()
	log.Info().Str("order_id", order.ID).Str("symbol", order.Symbol).Int("qty", order.Quantity).Float64("fill", order.FillPrice).Msg("Paper order filled")
	return order, nil
}

func (p *Paper) Exit(ctx context.Context, pos *domain.Position, price float64, now time.Time) (Fill, error) {
	if price <= 0 {
		return Fill{}, ErrRejected
	}
	p.mu.Lock()
	order, ok := p.orders[pos.BrokerOrderID]
	if ok {
		delete(p.orders, pos.BrokerOrderID)
	}
	p.mu.Unlock()
	if !ok {
		return Fill{}, ErrUnknownOrder
	}

	slip := price * p.slippageBps / 10000
	fill := price - slip
	if pos.Direction == domain.Short {
		fill = price + slip
	}
	costs := (order.FillPrice + fill) * float64(order.Quantity) * p.commissionBps / 10000
	return Fill{OrderID: order.ID, FillPrice: fill, Costs: costs, FilledAt: now}, nil
}

// OpenOrders reports the resting simulated book, chiefly for status output.
func (p *Paper) OpenOrders() []Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Order, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, o)
	}
	return out
}
