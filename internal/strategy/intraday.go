package strategy

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/indicators"
	"github.com/sawpanic/horizon/internal/regime"
	"github.com/sawpanic/horizon/internal/risk"
)

// IntradayStrategy captures momentum inside a single session: VWAP-sided
// breakouts of the day's range on heavy volume, at most two entries per
// day, everything flat by the end-of-day cutoff.
type IntradayStrategy struct {
	session   Session
	checklist *risk.Checklist

	volumeMult    float64
	targetR       float64
	maxTradesDay  int
	deadTradeBars int
	deadTradePct  float64

	mu          sync.Mutex
	tradesToday int
	tradeDay    time.Time
}

func NewIntraday(session Session, checklist *risk.Checklist) *IntradayStrategy {
	return &IntradayStrategy{
		session:       session,
		checklist:     checklist,
		volumeMult:    1.8,
		targetR:       1.5,
		maxTradesDay:  2,
		deadTradeBars: 3,
		deadTradePct:  0.1,
	}
}

func (s *IntradayStrategy) Horizon() domain.Horizon { return domain.Intraday }

func (s *IntradayStrategy) tradableNow(now time.Time) bool {
	t := sinceMidnight(now)
	return t > s.session.FirstEntry && t < s.session.LastEntry
}

func (s *IntradayStrategy) underDailyLimit(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := now.Truncate(24 * time.Hour)
	if !day.Equal(s.tradeDay) {
		s.tradeDay = day
		s.tradesToday = 0
	}
	return s.tradesToday < s.maxTradesDay
}

func (s *IntradayStrategy) countTrade() {
	s.mu.Lock()
	s.tradesToday++
	s.mu.Unlock()
}

func (s *IntradayStrategy) GenerateSignal(ctx context.Context, snap *domain.Snapshot, reading *regime.Reading, now time.Time) (*domain.Signal, error) {
	if !s.tradableNow(now) || !s.underDailyLimit(now) {
		return nil, nil
	}
	bars := snap.BarsFor(domain.TF15Min)
	if len(bars) < 50 || snap.Quote.Price <= 0 {
		return nil, nil
	}
	if reading == nil || reading.Label == regime.HighVolatility {
		return nil, nil
	}
	// Thin intraday ranges have nothing to break out of.
	if rangePct(bars, 10) < 1.5 {
		log.Debug().Str("symbol", snap.Symbol).Msg("Range-bound session, intraday standing aside")
		return nil, nil
	}

	price := snap.Quote.Price
	ema20 := indicators.EMA(bars, 20)
	ema50 := indicators.EMA(bars, 50)
	vwap := risk.SessionVWAP(bars)
	avgVol := indicators.AvgVolume(bars, 20)
	atr := indicators.ATR(bars, 14)
	dayHigh := indicators.HighestHigh(bars, len(bars))
	dayLow := indicators.LowestLow(bars, len(bars))
	volOK := avgVol > 0 && lastVolume(bars) >= avgVol*s.volumeMult

	if bullish(reading) && price > vwap && ema20 > ema50 && price > dayHigh*0.999 && volOK {
		swingLow := indicators.LowestLow(bars, 10)
		stop := math.Max(swingLow, price-atr)
		if stop >= price {
			return nil, nil
		}
		return s.buildLong(snap, price, stop, vwap, now)
	}

	if bearish(reading) && price < vwap && ema20 < ema50 && price < dayLow*1.001 && volOK {
		swingHigh := indicators.HighestHigh(bars, 10)
		stop := math.Min(swingHigh, price+atr)
		if stop <= price {
			return nil, nil
		}
		target := price - (stop-price)*s.targetR
		sig := domain.NewSignal(snap.Symbol, domain.Intraday, domain.Short, price, stop, target, "intraday breakdown below session low", now)
		if ok, reason := risk.VWAPGate(price, vwap, domain.Short); !ok {
			log.Debug().Str("symbol", snap.Symbol).Str("reason", reason).Msg("Intraday short gated")
			return nil, nil
		}
		if sig.RiskReward() < s.checklist.MinRiskReward {
			return nil, nil
		}
		s.countTrade()
		log.Info().Str("symbol", snap.Symbol).Float64("entry", price).Float64("stop", stop).Float64("target", target).Msg("Intraday short signal")
		return sig, nil
	}
	return nil, nil
}

func (s *IntradayStrategy) buildLong(snap *domain.Snapshot, price, stop, vwap float64, now time.Time) (*domain.Signal, error) {
	if ok, reason := risk.VWAPGate(price, vwap, domain.Long); !ok {
		log.Debug().Str("symbol", snap.Symbol).Str("reason", reason).Msg("Intraday long gated")
		return nil, nil
	}
	indexSession := snap.IndexBarsFor(domain.TF15Min)
	dayType := risk.DetectDayType(indexSession)
	resistance := risk.NearestResistance(snap.Quote, price)
	target := risk.AdaptiveTarget(snap.Symbol, price, stop, snap.Quote, dayType, resistance)

	sig := domain.NewSignal(snap.Symbol, domain.Intraday, domain.Long, price, stop, target.Price, "intraday breakout above session high ("+target.Basis+" target)", now)
	res := s.checklist.Evaluate(sig, snap.Quote, indexSession, now)
	log.Info().Str("symbol", snap.Symbol).Msg(res.Summary(snap.Symbol))
	if !res.Allowed {
		return nil, nil
	}
	s.countTrade()
	return sig, nil
}

// ShouldExit flattens on the stop, the target, the end-of-day cutoff, or
// a dead trade that has gone nowhere for three bars. A working trade gets
// its stop trailed to breakeven and beyond.
func (s *IntradayStrategy) ShouldExit(ctx context.Context, pos *domain.Position, snap *domain.Snapshot, now time.Time) (bool, string) {
	price := snap.Quote.Price
	if price <= 0 {
		return false, ""
	}
	if sinceMidnight(now) >= s.session.EODExit {
		return true, "end of day"
	}
	if pos.Direction == domain.Long {
		if price <= pos.Stop {
			return true, "stop loss"
		}
		if price >= pos.Target {
			return true, "target reached"
		}
	} else {
		if price >= pos.Stop {
			return true, "stop loss"
		}
		if price <= pos.Target {
			return true, "target reached"
		}
	}

	held := now.Sub(pos.OpenedAt)
	if held >= time.Duration(s.deadTradeBars)*pos.Horizon.BarInterval() {
		if movePct := math.Abs(price-pos.Entry) / pos.Entry * 100; movePct < s.deadTradePct {
			return true, "no progress"
		}
	}

	if trail, newStop := risk.ShouldTrailStop(pos, price); trail {
		if (pos.Direction == domain.Long && newStop > pos.Stop) ||
			(pos.Direction == domain.Short && newStop < pos.Stop) {
			log.Info().Str("symbol", pos.Symbol).Float64("old_stop", pos.Stop).Float64("new_stop", newStop).Msg("Intraday stop trailed")
			pos.Stop = newStop
		}
	}
	return false, ""
}

// rangePct is the high-low span of the last n bars relative to the low.
func rangePct(bars []domain.Bar, n int) float64 {
	if len(bars) < n {
		return 0
	}
	hi := indicators.HighestHigh(bars, n)
	lo := indicators.LowestLow(bars, n)
	if lo <= 0 {
		return 0
	}
	return (hi - lo) / lo * 100
}
