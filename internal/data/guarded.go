package data

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/horizon/internal/domain"
)

// GuardedProvider wraps a Provider with a token-bucket rate limit, a
// circuit breaker and a per-call timeout. A breaker that is open, a
// throttle that cannot be satisfied, or an expired deadline all surface
// as ErrUnavailable; ErrNoData passes through without counting as a
// breaker failure.
type GuardedProvider struct {
	next    Provider
	breaker *cb.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
}

type GuardConfig struct {
	Name        string
	RPS         float64
	Burst       int
	CallTimeout time.Duration
}

func DefaultGuardConfig(name string) GuardConfig {
	return GuardConfig{Name: name, RPS: 5, Burst: 10, CallTimeout: 10 * time.Second}
}

func NewGuardedProvider(next Provider, cfg GuardConfig) *GuardedProvider {
	st := cb.Settings{Name: cfg.Name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Data feed breaker state changed")
	}
	return &GuardedProvider{
		next:    next,
		breaker: cb.NewCircuitBreaker(st),
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		timeout: cfg.CallTimeout,
	}
}

func (p *GuardedProvider) call(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	v, err := p.breaker.Execute(func() (any, error) {
		cctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		v, err := fn(cctx)
		// A symbol the feed simply has nothing for is not a feed fault.
		if errors.Is(err, ErrNoData) {
			return v, nil
		}
		return v, err
	})
	if err != nil {
		if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
			return nil, errors.Join(ErrUnavailable, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Join(ErrUnavailable, err)
		}
		return nil, err
	}
	return v, nil
}

func (p *GuardedProvider) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	v, err := p.call(ctx, func(ctx context.Context) (any, error) {
		q, err := p.next.Quote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return q, nil
	})
	if err != nil {
		return domain.Quote{}, err
	}
	q, ok := v.(domain.Quote)
	if !ok {
		return domain.Quote{}, ErrNoData
	}
	return q, nil
}

func (p *GuardedProvider) Bars(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	v, err := p.call(ctx, func(ctx context.Context) (any, error) {
		return p.next.Bars(ctx, symbol, tf, limit)
	})
	if err != nil {
		return nil, err
	}
	bars, _ := v.([]domain.Bar)
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}

func (p *GuardedProvider) Fundamentals(ctx context.Context, symbol string) (*domain.Fundamentals, error) {
	v, err := p.call(ctx, func(ctx context.Context) (any, error) {
		return p.next.Fundamentals(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	f, _ := v.(*domain.Fundamentals)
	if f == nil {
		return nil, ErrNoData
	}
	return f, nil
}
