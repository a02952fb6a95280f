package perf

import (
	"fmt"
	"math"

	"github.com/sawpanic/horizon/internal/domain"
)

// Score is the 0-100 breakdown for one horizon. Derived on demand, never
// stored.
type Score struct {
	Total        float64 `json:"total"`
	Return       float64 `json:"return"`        // of 30
	ProfitFactor float64 `json:"profit_factor"` // of 20
	Drawdown     float64 `json:"drawdown"`      // of 20
	WinRate      float64 `json:"win_rate"`      // of 15
	Trend        float64 `json:"trend"`         // of 15
}

func (s Score) String() string {
	return fmt.Sprintf("%.1f/100 (ret %.1f pf %.1f dd %.1f wr %.1f trend %.1f)",
		s.Total, s.Return, s.ProfitFactor, s.Drawdown, s.WinRate, s.Trend)
}

const (
	excellentReturn = 0.10
	goodReturn      = 0.05
	excellentPF     = 2.0
	goodPF          = 1.5
	maxAcceptableDD = 0.10
	excellentWin    = 0.60
	goodWin         = 0.50
)

// Score computes the horizon's current score against its allocated
// capital. A horizon with no trades scores a neutral 50, split evenly
// across the components, so untested books are neither rewarded nor
// punished.
func (t *Tracker) Score(h domain.Horizon, allocatedCapital float64) Score {
	t.mu.Lock()
	m := t.metrics[h]
	if m.TotalTrades == 0 {
		t.mu.Unlock()
		return Score{Total: 50.0, Return: 15.0, ProfitFactor: 10.0, Drawdown: 10.0, WinRate: 7.5, Trend: 7.5}
	}
	returnPct := 0.0
	if allocatedCapital > 0 {
		returnPct = m.NetPnL / allocatedCapital
	}
	pf := m.ProfitFactor()
	dd := m.MaxDrawdown
	winRate := m.WinRate() / 100
	slope := m.CurveSlope
	t.mu.Unlock()

	s := Score{
		Return:       scoreReturn(returnPct),
		ProfitFactor: scoreProfitFactor(pf),
		Drawdown:     scoreDrawdown(dd, allocatedCapital),
		WinRate:      scoreWinRate(winRate),
		Trend:        scoreTrend(slope),
	}
	s.Total = round1(s.Return + s.ProfitFactor + s.Drawdown + s.WinRate + s.Trend)
	s.Return = round1(s.Return)
	s.ProfitFactor = round1(s.ProfitFactor)
	s.Drawdown = round1(s.Drawdown)
	s.WinRate = round1(s.WinRate)
	s.Trend = round1(s.Trend)
	return s
}

func scoreReturn(returnPct float64) float64 {
	switch {
	case returnPct >= excellentReturn:
		return 30.0
	case returnPct >= goodReturn:
		return 20.0 + 10.0*(returnPct-goodReturn)/(excellentReturn-goodReturn)
	case returnPct > 0:
		return 15.0 + 5.0*returnPct/goodReturn
	case returnPct == 0:
		return 15.0
	default:
		penalty := math.Min(math.Abs(returnPct)/maxAcceptableDD, 1.0)
		return math.Max(0, 15.0-15.0*penalty)
	}
}

func scoreProfitFactor(pf float64) float64 {
	switch {
	case pf >= excellentPF:
		return 20.0
	case pf >= goodPF:
		return 15.0 + 5.0*(pf-goodPF)/(excellentPF-goodPF)
	case pf >= 1.0:
		return 10.0 + 5.0*(pf-1.0)/(goodPF-1.0)
	default:
		return math.Max(0, 10.0*pf)
	}
}

func scoreDrawdown(drawdown, capital float64) float64 {
	if capital == 0 {
		return 10.0
	}
	ddPct := math.Abs(drawdown) / capital
	half := maxAcceptableDD / 2
	switch {
	case ddPct == 0:
		return 20.0
	case ddPct <= half:
		return 20.0 - ddPct/half*5.0
	case ddPct <= maxAcceptableDD:
		return 15.0 - (ddPct-half)/half*10.0
	default:
		penalty := math.Min((ddPct-maxAcceptableDD)/maxAcceptableDD, 1.0)
		return math.Max(0, 5.0-5.0*penalty)
	}
}

func scoreWinRate(winRate float64) float64 {
	switch {
	case winRate >= excellentWin:
		return 15.0
	case winRate >= goodWin:
		return 10.0 + 5.0*(winRate-goodWin)/(excellentWin-goodWin)
	default:
		return math.Max(0, 10.0*winRate/goodWin)
	}
}

func scoreTrend(slope float64) float64 {
	switch {
	case slope >= 0.05:
		return 15.0
	case slope >= 0.02:
		return 12.0
	case slope >= 0:
		return 10.0
	case slope >= -0.02:
		return 7.0
	case slope >= -0.05:
		return 4.0
	default:
		return 0.0
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
