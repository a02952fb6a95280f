package risk

import (
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/domain"
)

// TargetChoice is the selected exit target and the basis that produced it.
type TargetChoice struct {
	Price float64 `json:"price"`
	Basis string  `json:"basis"`
}

const minTargetR = 1.5

func maxTargetPct(dayType DayType) float64 {
	switch dayType {
	case DayTrending:
		return 3.5
	case DayVolatile:
		return 3.0
	default:
		return 2.5
	}
}

func dayTypeMultiple(dayType DayType) float64 {
	switch dayType {
	case DayTrending:
		return 2.0
	case DayVolatile:
		return 1.75
	default:
		return 1.5
	}
}

// AdaptiveTarget picks the most conservative of four candidate targets,
// subject to a 1.5R floor: the structure level (just under resistance, or
// 80% of the gap when resistance is close), a day-type risk multiple, 1.5x
// the day's high-low range, and a percentage cap on the entry. Long side
// only; short targets mirror through the caller's sign flip.
func AdaptiveTarget(symbol string, entry, stop float64, q domain.Quote, dayType DayType, resistance float64) TargetChoice {
	risk := entry - stop
	minTarget := entry + risk*minTargetR

	structure := resistance * 0.99
	if gap := resistance - entry; gap < risk*minTargetR {
		structure = entry + gap*0.8
	}
	dayTarget := entry + risk*dayTypeMultiple(dayType)
	rangeTarget := entry + (q.DayHigh-q.DayLow)*1.5
	pctCap := entry * (1 + maxTargetPct(dayType)/100)

	candidates := []TargetChoice{
		{structure, "structure"},
		{dayTarget, "day_type_" + string(dayType)},
		{rangeTarget, "range_1.5x"},
		{pctCap, "pct_cap"},
	}

	best := TargetChoice{}
	for _, c := range candidates {
		if c.Price < minTarget {
			continue
		}
		if best.Basis == "" || c.Price < best.Price {
			best = c
		}
	}
	if best.Basis == "" {
		if pctCap >= minTarget {
			best = TargetChoice{pctCap, "pct_cap"}
		} else {
			best = TargetChoice{minTarget, "minimum_1.5R"}
		}
	}

	log.Debug().
		Str("symbol", symbol).
		Float64("target", best.Price).
		Str("basis", best.Basis).
		Float64("r_multiple", (best.Price-entry)/risk).
		Msg("Adaptive target selected")
	return best
}

// ShouldTrailStop tightens the stop as the trade works: breakeven at
// 0.5R, plus half a risk unit at 1R. Returns the unchanged stop when no
// trail applies.
func ShouldTrailStop(p *domain.Position, price float64) (bool, float64) {
	risk := p.RiskPerShare()
	if risk <= 0 {
		return false, p.Stop
	}
	r := p.RMultiple(price)
	sign := 1.0
	if p.Direction == domain.Short {
		sign = -1.0
	}
	switch {
	case r >= 1.0:
		return true, p.Entry + sign*risk*0.5
	case r >= 0.5:
		return true, p.Entry
	default:
		return false, p.Stop
	}
}
