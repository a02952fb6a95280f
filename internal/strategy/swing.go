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

// SwingStrategy rides multi-day momentum: ten-day breakouts above a rising
// moving-average stack, confirmed by volume and relative strength against
// the index, held for up to ten sessions.
type SwingStrategy struct {
	minBars     int
	breakoutLB  int
	volumeMult  float64
	targetR     float64
	atrMult     float64
	maxHoldDays int
	trailTrig   float64
}

func NewSwing() *SwingStrategy {
	return &SwingStrategy{
		minBars:     60,
		breakoutLB:  10,
		volumeMult:  1.5,
		targetR:     2.0,
		atrMult:     1.5,
		maxHoldDays: 10,
		trailTrig:   1.5,
	}
}

func (s *SwingStrategy) Horizon() domain.Horizon { return domain.Swing }

func (s *SwingStrategy) GenerateSignal(ctx context.Context, snap *domain.Snapshot, reading *regime.Reading, now time.Time) (*domain.Signal, error) {
	bars := snap.BarsFor(domain.TFDaily)
	if len(bars) < s.minBars || snap.Quote.Price <= 0 {
		return nil, nil
	}
	if reading == nil || !reading.Trending() {
		return nil, nil
	}

	price := snap.Quote.Price
	sma20 := indicators.SMA(bars, 20)
	sma50 := indicators.SMA(bars, 50)
	avgVol := indicators.AvgVolume(bars, 20)
	atr := indicators.ATR(bars, 14)
	volOK := avgVol > 0 && lastVolume(bars) >= avgVol*s.volumeMult
	rs := relativeStrength(bars, snap.IndexBarsFor(domain.TFDaily), s.breakoutLB)

	if bullish(reading) && price > sma50 && sma20 > sma50 && volOK && rs > 0 {
		high10 := indicators.HighestHigh(bars, s.breakoutLB)
		if price >= high10*0.998 {
			low5 := indicators.LowestLow(bars, 5)
			stop := math.Max(low5, price-s.atrMult*atr)
			if stop >= price {
				return nil, nil
			}
			target := price + (price-stop)*s.targetR
			sig := domain.NewSignal(snap.Symbol, domain.Swing, domain.Long, price, stop, target, "swing breakout over 10-day high with relative strength", now)
			log.Info().Str("symbol", snap.Symbol).Float64("entry", price).Float64("stop", stop).Float64("rs", rs).Msg("Swing long signal")
			return sig, nil
		}
	}

	if bearish(reading) && price < sma50 && sma20 < sma50 && volOK && rs < 0 {
		low10 := indicators.LowestLow(bars, s.breakoutLB)
		if price <= low10*1.002 {
			high5 := indicators.HighestHigh(bars, 5)
			stop := math.Min(high5, price+s.atrMult*atr)
			if stop <= price {
				return nil, nil
			}
			target := price - (stop-price)*s.targetR
			sig := domain.NewSignal(snap.Symbol, domain.Swing, domain.Short, price, stop, target, "swing breakdown under 10-day low with relative weakness", now)
			log.Info().Str("symbol", snap.Symbol).Float64("entry", price).Float64("stop", stop).Float64("rs", rs).Msg("Swing short signal")
			return sig, nil
		}
	}
	return nil, nil
}

func (s *SwingStrategy) ShouldExit(ctx context.Context, pos *domain.Position, snap *domain.Snapshot, now time.Time) (bool, string) {
	price := snap.Quote.Price
	if price <= 0 {
		return false, ""
	}
	if now.Sub(pos.OpenedAt) > time.Duration(s.maxHoldDays)*24*time.Hour {
		return true, "max holding period"
	}
	bars := snap.BarsFor(domain.TFDaily)
	sma20 := indicators.SMA(bars, 20)

	if pos.Direction == domain.Long {
		if price <= pos.Stop {
			return true, "stop loss"
		}
		if price >= pos.Target {
			return true, "target reached"
		}
		if sma20 > 0 && price < sma20 {
			return true, "close below 20-day average"
		}
		// Past 1.5R: stop rides the 20-day average instead of the entry stop.
		if sma20 > pos.Stop && pos.RMultiple(price) >= s.trailTrig {
			log.Info().Str("symbol", pos.Symbol).Float64("new_stop", sma20).Msg("Swing stop trailed to 20DMA")
			pos.Stop = sma20
		}
	} else {
		if price >= pos.Stop {
			return true, "stop loss"
		}
		if price <= pos.Target {
			return true, "target reached"
		}
		if sma20 > 0 && price > sma20 {
			return true, "close above 20-day average"
		}
		if sma20 > 0 && sma20 < pos.Stop && pos.RMultiple(price) >= s.trailTrig {
			pos.Stop = sma20
		}
	}
	return false, ""
}

// relativeStrength is the instrument's lookback return minus the index's.
func relativeStrength(bars, index []domain.Bar, lookback int) float64 {
	own := lookbackReturn(bars, lookback)
	if len(index) <= lookback {
		return own
	}
	return own - lookbackReturn(index, lookback)
}

func lookbackReturn(bars []domain.Bar, lookback int) float64 {
	if len(bars) <= lookback {
		return 0
	}
	return indicators.PercentChange(bars[len(bars)-1-lookback].Close, bars[len(bars)-1].Close)
}
