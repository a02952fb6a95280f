package data

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sawpanic/horizon/internal/domain"
)

// SimProvider synthesizes a deterministic geometric random walk per
// symbol. It exists for paper trading and local development; the walk is
// seeded from the symbol name so runs are reproducible.
type SimProvider struct {
	now func() time.Time
}

func NewSimProvider() *SimProvider {
	return &SimProvider{now: time.Now}
}

func symbolSeed(symbol string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return h.Sum64()
}

func (p *SimProvider) rng(symbol string, tf domain.Timeframe) *rand.Rand {
	seed := symbolSeed(symbol + ":" + string(tf))
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func basePrice(symbol string) float64 {
	return 100 + float64(symbolSeed(symbol)%3900)
}

func (p *SimProvider) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	bars, err := p.Bars(ctx, symbol, domain.TF15Min, 30)
	if err != nil {
		return domain.Quote{}, err
	}
	last := bars[len(bars)-1]
	open := bars[0].Open
	hi, lo := bars[0].High, bars[0].Low
	for _, b := range bars {
		hi = math.Max(hi, b.High)
		lo = math.Min(lo, b.Low)
	}
	return domain.Quote{
		Symbol:    symbol,
		Price:     last.Close,
		DayOpen:   open,
		DayHigh:   hi,
		DayLow:    lo,
		PrevClose: open,
		Time:      p.now(),
	}, nil
}

func (p *SimProvider) Bars(_ context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	if limit <= 0 {
		return nil, ErrNoData
	}
	now := p.now()
	rng := p.rng(symbol, tf)
	interval := barInterval(tf)
	volatility, drift := walkParams(tf, symbol)

	price := basePrice(symbol)
	bars := make([]domain.Bar, limit)
	start := now.Add(-time.Duration(limit) * interval)
	for i := range bars {
		step := drift + volatility*rng.NormFloat64()
		next := price * (1 + step)
		if next < 1 {
			next = 1
		}
		hi := math.Max(price, next) * (1 + 0.2*volatility*rng.Float64())
		lo := math.Min(price, next) * (1 - 0.2*volatility*rng.Float64())
		bars[i] = domain.Bar{
			Time:   start.Add(time.Duration(i) * interval),
			Open:   price,
			High:   hi,
			Low:    lo,
			Close:  next,
			Volume: 1000 + 4000*rng.Float64(),
		}
		price = next
	}
	return bars, nil
}

func (p *SimProvider) Fundamentals(_ context.Context, symbol string) (*domain.Fundamentals, error) {
	seed := symbolSeed(symbol)
	pick := func(shift uint, lo, hi float64) float64 {
		return lo + (hi-lo)*float64((seed>>shift)%1000)/1000
	}
	return &domain.Fundamentals{
		Symbol:           symbol,
		AsOf:             p.now().AddDate(0, 0, -int(seed%90)),
		ROE:              pick(3, 0.05, 0.30),
		ROEPriorYear:     pick(7, 0.05, 0.30),
		DebtToEquity:     pick(11, 0.1, 1.8),
		RevenueGrowthYoY: pick(15, -0.05, 0.25),
		ProfitGrowthYoY:  pick(19, -0.10, 0.30),
		RevenueCAGR3Y:    pick(23, 0.02, 0.20),
		ProfitCAGR3Y:     pick(27, 0.02, 0.25),
		NegativeQuarters: int(seed>>31) % 3,
	}, nil
}

func barInterval(tf domain.Timeframe) time.Duration {
	switch tf {
	case domain.TF15Min:
		return 15 * time.Minute
	case domain.TFHourly:
		return time.Hour
	case domain.TFDaily:
		return 24 * time.Hour
	case domain.TFWeekly:
		return 7 * 24 * time.Hour
	default:
		return 15 * time.Minute
	}
}

// walkParams biases roughly a third of symbols into clean trends so the
// strategies have setups to find.
func walkParams(tf domain.Timeframe, symbol string) (volatility, drift float64) {
	switch tf {
	case domain.TF15Min:
		volatility = 0.002
	case domain.TFDaily:
		volatility = 0.012
	case domain.TFWeekly:
		volatility = 0.025
	default:
		volatility = 0.005
	}
	switch symbolSeed(symbol) % 3 {
	case 0:
		drift = volatility / 4
	case 1:
		drift = -volatility / 6
	}
	return volatility, drift
}
