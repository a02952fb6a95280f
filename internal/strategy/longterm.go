package strategy

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/indicators"
	"github.com/sawpanic/horizon/internal/regime"
)

// LongTermStrategy is the compounder sleeve: multi-year growth and
// return-on-equity screens, entries above the 200-day average, a wide
// structural stop, and exits driven by business deterioration rather
// than price noise. Targets stretch instead of closing the position.
type LongTermStrategy struct {
	minDaily       int
	targetR        float64
	stopPct        float64
	minRevCAGR     float64
	minProfitCAGR  float64
	minROE         float64
	maxDebtEquity  float64
	roeDecayFactor float64
	maxDebtExit    float64
	targetStretch  float64
	weeklyBreaches int
}

func NewLongTerm() *LongTermStrategy {
	return &LongTermStrategy{
		minDaily:       200,
		targetR:        3.0,
		stopPct:        0.90,
		minRevCAGR:     0.12,
		minProfitCAGR:  0.15,
		minROE:         0.18,
		maxDebtEquity:  1.0,
		roeDecayFactor: 0.7,
		maxDebtExit:    1.5,
		targetStretch:  1.2,
		weeklyBreaches: 4,
	}
}

func (s *LongTermStrategy) Horizon() domain.Horizon { return domain.LongTerm }

func (s *LongTermStrategy) fundamentalsPass(f *domain.Fundamentals, now time.Time) bool {
	if f == nil || !f.Fresh(now) {
		return false
	}
	return f.RevenueCAGR3Y >= s.minRevCAGR &&
		f.ProfitCAGR3Y >= s.minProfitCAGR &&
		f.ROE >= s.minROE &&
		f.DebtToEquity <= s.maxDebtEquity
}

func (s *LongTermStrategy) GenerateSignal(ctx context.Context, snap *domain.Snapshot, reading *regime.Reading, now time.Time) (*domain.Signal, error) {
	daily := snap.BarsFor(domain.TFDaily)
	if len(daily) < s.minDaily || snap.Quote.Price <= 0 {
		return nil, nil
	}
	if reading != nil && reading.Label == regime.HighVolatility {
		return nil, nil
	}
	if !s.fundamentalsPass(snap.Fundamentals, now) {
		log.Debug().Str("symbol", snap.Symbol).Msg("Long-term fundamentals gate failed")
		return nil, nil
	}

	price := snap.Quote.Price
	sma200 := indicators.SMA(daily, 200)
	if sma200 <= 0 || price <= sma200 {
		return nil, nil
	}

	stop := sma200 * s.stopPct
	target := price + (price-stop)*s.targetR
	sig := domain.NewSignal(snap.Symbol, domain.LongTerm, domain.Long, price, stop, target, "long-term compounder above 200-day average", now)
	sig.Meta = map[string]float64{"entry_roe": snap.Fundamentals.ROE}
	log.Info().Str("symbol", snap.Symbol).Float64("entry", price).Float64("stop", stop).Float64("roe", snap.Fundamentals.ROE).Msg("Long-term signal")
	return sig, nil
}

func (s *LongTermStrategy) ShouldExit(ctx context.Context, pos *domain.Position, snap *domain.Snapshot, now time.Time) (bool, string) {
	price := snap.Quote.Price
	if price <= 0 {
		return false, ""
	}
	if price <= pos.Stop {
		return true, "stop loss"
	}

	if f := snap.Fundamentals; f != nil {
		if entryROE, ok := pos.Meta["entry_roe"]; ok && entryROE > 0 && f.ROE < entryROE*s.roeDecayFactor {
			return true, "return on equity deterioration"
		}
		if f.DebtToEquity > s.maxDebtExit {
			return true, "leverage deterioration"
		}
		if f.NegativeQuarters >= 2 {
			return true, "consecutive negative quarters"
		}
	}

	daily := snap.BarsFor(domain.TFDaily)
	sma200 := indicators.SMA(daily, 200)
	weekly := snap.BarsFor(domain.TFWeekly)
	if sma200 > 0 && len(weekly) >= s.weeklyBreaches {
		breaches := 0
		for _, b := range weekly[len(weekly)-s.weeklyBreaches:] {
			if b.Close < sma200 {
				breaches++
			}
		}
		if breaches == s.weeklyBreaches {
			return true, "sustained break of 200-day average"
		}
	}

	// A hit target is a reason to raise it, not to sell the compounder.
	if price >= pos.Target {
		old := pos.Target
		pos.Target = price * s.targetStretch
		pos.TargetRevised = true
		log.Info().Str("symbol", pos.Symbol).Float64("old_target", old).Float64("new_target", pos.Target).Msg("Long-term target revised upward")
	}
	return false, ""
}
