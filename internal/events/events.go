// Package events defines the audit trail the engine emits: position
// lifecycle and allocation changes. Sinks are fire-and-forget; a slow or
// failing sink must never stall a trading cycle.
package events

import (
	"context"
	"time"

	"github.com/sawpanic/horizon/internal/domain"
)

type Kind string

const (
	KindPositionOpened    Kind = "position_opened"
	KindPositionClosed    Kind = "position_closed"
	KindAllocationChanged Kind = "allocation_changed"
	KindKillSwitch        Kind = "kill_switch"
)

// Event is one audit record. Payload is the typed source object and is
// serialized by the sink.
type Event struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Symbol  string    `json:"symbol,omitempty"`
	Horizon string    `json:"horizon,omitempty"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

type Sink interface {
	Emit(ctx context.Context, ev Event)
	Close() error
}

// NopSink drops everything. Used when no database is configured.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}
func (NopSink) Close() error                { return nil }

func PositionOpened(pos *domain.Position, now time.Time) Event {
	return Event{
		ID:      pos.ID,
		Kind:    KindPositionOpened,
		Symbol:  pos.Symbol,
		Horizon: string(pos.Horizon),
		At:      now,
		Payload: pos,
	}
}

func PositionClosed(res domain.TradeResult, now time.Time) Event {
	return Event{
		Kind:    KindPositionClosed,
		Symbol:  res.Symbol,
		Horizon: string(res.Horizon),
		At:      now,
		Payload: res,
	}
}

func AllocationChanged(changes any, now time.Time) Event {
	return Event{Kind: KindAllocationChanged, At: now, Payload: changes}
}

func KillSwitch(horizon domain.Horizon, reason string, now time.Time) Event {
	return Event{
		Kind:    KindKillSwitch,
		Horizon: string(horizon),
		At:      now,
		Payload: map[string]string{"reason": reason},
	}
}
