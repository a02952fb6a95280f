// Package data defines the market data boundary: the Provider interface
// the engine consumes, a TTL cache in front of it, and a guarded wrapper
// that rate-limits and circuit-breaks the upstream feed.
package data

import (
	"context"
	"errors"

	"github.com/sawpanic/horizon/internal/domain"
)

var (
	// ErrNoData means the feed has nothing for the symbol. Callers treat
	// it as "no signal", not as a fault.
	ErrNoData = errors.New("no data for symbol")

	// ErrUnavailable means the feed is throttled, broken open, or timed
	// out. Callers skip the symbol this cycle.
	ErrUnavailable = errors.New("data source unavailable")
)

// Provider is a market data feed. Implementations must be safe for
// concurrent use; every call honors the context deadline.
type Provider interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
	Bars(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error)
	Fundamentals(ctx context.Context, symbol string) (*domain.Fundamentals, error)
}
