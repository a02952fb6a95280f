// Package strategy holds the four horizon strategies. Each is a
// standalone implementation of the Strategy interface; they share no
// state and consume the regime reading their horizon trades on.
package strategy

import (
	"context"
	"time"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/regime"
)

// Strategy produces entry signals and exit decisions for one horizon.
// GenerateSignal returns (nil, nil) when no setup exists; an error means
// the inputs were unusable and the symbol is skipped this cycle.
// ShouldExit may tighten the position's stop or revise its target as a
// side effect; the engine serializes access to the position.
type Strategy interface {
	Horizon() domain.Horizon
	GenerateSignal(ctx context.Context, snap *domain.Snapshot, reading *regime.Reading, now time.Time) (*domain.Signal, error)
	ShouldExit(ctx context.Context, pos *domain.Position, snap *domain.Snapshot, now time.Time) (bool, string)
}

// Session holds the trading-day boundaries as offsets from midnight in
// exchange time.
type Session struct {
	Open       time.Duration `yaml:"open"`
	FirstEntry time.Duration `yaml:"first_entry"` // first 15 minutes are no-trade
	LastEntry  time.Duration `yaml:"last_entry"`
	EODExit    time.Duration `yaml:"eod_exit"`
}

func DefaultSession() Session {
	return Session{
		Open:       9*time.Hour + 15*time.Minute,
		FirstEntry: 9*time.Hour + 30*time.Minute,
		LastEntry:  15 * time.Hour,
		EODExit:    15*time.Hour + 20*time.Minute,
	}
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

func bullish(r *regime.Reading) bool { return r != nil && r.Label == regime.TrendUp }
func bearish(r *regime.Reading) bool { return r != nil && r.Label == regime.TrendDown }

func lastVolume(bars []domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	return bars[len(bars)-1].Volume
}
