package strategy

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/indicators"
	"github.com/sawpanic/horizon/internal/regime"
)

// MidTermStrategy buys position breakouts in fundamentally sound names:
// sixty-day highs inside an aligned 50/200 moving-average stack, held for
// weeks to months while the weekly trend and the earnings story last.
type MidTermStrategy struct {
	minDaily    int
	minWeekly   int
	breakoutLB  int
	targetR     float64
	maxHoldDays int
	minROE      float64
	momDays     int
	momFloorPct float64
}

func NewMidTerm() *MidTermStrategy {
	return &MidTermStrategy{
		minDaily:    200,
		minWeekly:   20,
		breakoutLB:  60,
		targetR:     2.5,
		maxHoldDays: 180,
		minROE:      0.15,
		momDays:     90,
		momFloorPct: 5,
	}
}

func (s *MidTermStrategy) Horizon() domain.Horizon { return domain.MidTerm }

func (s *MidTermStrategy) fundamentalsPass(f *domain.Fundamentals, now time.Time) bool {
	if f == nil || !f.Fresh(now) {
		return false
	}
	return f.ROE >= s.minROE && f.RevenueGrowthYoY >= 0 && f.ProfitGrowthYoY >= 0
}

func (s *MidTermStrategy) GenerateSignal(ctx context.Context, snap *domain.Snapshot, reading *regime.Reading, now time.Time) (*domain.Signal, error) {
	daily := snap.BarsFor(domain.TFDaily)
	weekly := snap.BarsFor(domain.TFWeekly)
	if len(daily) < s.minDaily || len(weekly) < s.minWeekly || snap.Quote.Price <= 0 {
		return nil, nil
	}
	if reading == nil || reading.Label != regime.TrendUp {
		return nil, nil
	}
	if !s.fundamentalsPass(snap.Fundamentals, now) {
		log.Debug().Str("symbol", snap.Symbol).Msg("Mid-term fundamentals gate failed")
		return nil, nil
	}

	price := snap.Quote.Price
	sma50 := indicators.SMA(daily, 50)
	sma200 := indicators.SMA(daily, 200)
	if !(price > sma50 && sma50 > sma200) {
		return nil, nil
	}
	high60 := indicators.HighestHigh(daily, s.breakoutLB)
	if price < high60*0.995 {
		return nil, nil
	}

	sma20 := indicators.SMA(daily, 20)
	low4w := indicators.LowestLow(daily, 20)
	stop := math.Max(low4w, sma20*0.95)
	if stop >= price {
		return nil, nil
	}
	target := price + (price-stop)*s.targetR
	sig := domain.NewSignal(snap.Symbol, domain.MidTerm, domain.Long, price, stop, target, "mid-term breakout over 60-day high in uptrend", now)
	sig.Meta = map[string]float64{"earnings_growth": snap.Fundamentals.ProfitGrowthYoY}
	log.Info().Str("symbol", snap.Symbol).Float64("entry", price).Float64("stop", stop).Float64("roe", snap.Fundamentals.ROE).Msg("Mid-term long signal")
	return sig, nil
}

func (s *MidTermStrategy) ShouldExit(ctx context.Context, pos *domain.Position, snap *domain.Snapshot, now time.Time) (bool, string) {
	price := snap.Quote.Price
	if price <= 0 {
		return false, ""
	}
	held := now.Sub(pos.OpenedAt)
	if held > time.Duration(s.maxHoldDays)*24*time.Hour {
		return true, "max holding period"
	}
	if price <= pos.Stop {
		return true, "stop loss"
	}
	if price >= pos.Target {
		return true, "target reached"
	}

	weekly := snap.BarsFor(domain.TFWeekly)
	if len(weekly) >= 20 {
		wsma20 := indicators.SMA(weekly, 20)
		if wsma20 > 0 && weekly[len(weekly)-1].Close < wsma20 {
			return true, "weekly close below 20-week average"
		}
	}

	// After three months a position must still be moving.
	if held >= time.Duration(s.momDays)*24*time.Hour {
		if gain := (price - pos.Entry) / pos.Entry * 100; gain < s.momFloorPct {
			return true, "stalled momentum"
		}
	}

	if f := snap.Fundamentals; f != nil && f.ProfitGrowthYoY < -0.10 {
		return true, "earnings deterioration"
	}
	return false, ""
}
