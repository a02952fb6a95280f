// Package risk holds the shared overlays every entry passes through: the
// pre-entry checklist, adaptive target selection and stop trailing. A
// signal that fails here is discarded with its reason, never downgraded.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/indicators"
)

type DayType string

const (
	DayTrending DayType = "trending"
	DayRange    DayType = "range"
	DayVolatile DayType = "volatile"
	DayUnknown  DayType = "unknown"
)

type IndexTone string

const (
	IndexTrendingUp   IndexTone = "trending_up"
	IndexTrendingDown IndexTone = "trending_down"
	IndexFlat         IndexTone = "flat"
	IndexVolatile     IndexTone = "volatile"
	IndexUnknown      IndexTone = "unknown"
)

type EntryTiming string

const (
	TimingFirstBreakout  EntryTiming = "first_breakout"
	TimingSecondBreakout EntryTiming = "second_breakout"
	TimingLateEntry      EntryTiming = "late_entry"
	TimingChase          EntryTiming = "chase"
	TimingNormal         EntryTiming = "normal"
)

type Extension string

const (
	NotExtended        Extension = "not_extended"
	ModeratelyExtended Extension = "moderately_extended"
	HighlyExtended     Extension = "highly_extended"
)

// GateCheck is one named checklist item with its measured value and the
// threshold it was held against.
type GateCheck struct {
	Name        string  `json:"name"`
	Passed      bool    `json:"passed"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	Description string  `json:"description"`
}

// ChecklistResult is the full pre-entry analysis for one candidate signal.
type ChecklistResult struct {
	Allowed      bool        `json:"allowed"`
	RejectReason string      `json:"reject_reason,omitempty"`
	Warnings     []string    `json:"warnings,omitempty"`
	Checks       []GateCheck `json:"checks"`
	IndexTone    IndexTone   `json:"index_tone"`
	DayType      DayType     `json:"day_type"`
	Timing       EntryTiming `json:"timing"`
	Extension    Extension   `json:"extension"`
	Resistance   float64     `json:"resistance"`
}

// Summary renders the decision for the audit log.
func (r *ChecklistResult) Summary(symbol string) string {
	if r.Allowed {
		return fmt.Sprintf("✅ ENTRY CLEARED %s (index %s, day %s, timing %s)", symbol, r.IndexTone, r.DayType, r.Timing)
	}
	return fmt.Sprintf("❌ ENTRY BLOCKED %s: %s", symbol, r.RejectReason)
}

// Checklist runs the shared discipline gates, chiefly for the intraday
// horizon. firstHourEnd is minutes into the session before which a move
// near the day high still counts as the first breakout.
type Checklist struct {
	MinRiskReward float64
	SessionOpen   time.Duration // offset from midnight, e.g. 9h15m
	FirstHourEnd  time.Duration
}

func NewChecklist(minRR float64) *Checklist {
	return &Checklist{
		MinRiskReward: minRR,
		SessionOpen:   9*time.Hour + 15*time.Minute,
		FirstHourEnd:  10*time.Hour + 15*time.Minute,
	}
}

// ClassifyIndexTone reads the reference index's session bars. Thin range
// means flat; a strong close-to-open move on a wide range means trending;
// a wide range with no direction means volatile.
func ClassifyIndexTone(bars []domain.Bar) IndexTone {
	if len(bars) < 4 {
		return IndexUnknown
	}
	open := bars[0].Open
	if open <= 0 {
		return IndexUnknown
	}
	hi, lo := bars[0].High, bars[0].Low
	for _, b := range bars {
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}
	dayRange := (hi - lo) / open * 100
	movePct := (bars[len(bars)-1].Close - open) / open * 100

	switch {
	case dayRange < 0.6:
		return IndexFlat
	case math.Abs(movePct) > 0.8 && dayRange > 1.0:
		if movePct > 0 {
			return IndexTrendingUp
		}
		return IndexTrendingDown
	case dayRange > 1.5:
		return IndexVolatile
	default:
		return IndexFlat
	}
}

// DetectDayType reads the same session bars for target sizing: a quiet
// open on a narrow total range is a range day, a wide directional range a
// trending day, a wide directionless one a volatile day.
func DetectDayType(bars []domain.Bar) DayType {
	if len(bars) < 3 {
		return DayUnknown
	}
	open := bars[0].Open
	if open <= 0 {
		return DayUnknown
	}
	firstHi, firstLo := bars[0].High, bars[0].Low
	for _, b := range bars[:3] {
		if b.High > firstHi {
			firstHi = b.High
		}
		if b.Low < firstLo {
			firstLo = b.Low
		}
	}
	firstRangePct := (firstHi - firstLo) / open * 100

	hi, lo := bars[0].High, bars[0].Low
	for _, b := range bars {
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}
	totalRangePct := (hi - lo) / open * 100
	movePct := math.Abs(bars[len(bars)-1].Close-open) / open * 100

	switch {
	case firstRangePct < 0.6 && totalRangePct < 1.0:
		return DayRange
	case totalRangePct > 1.5 && movePct > 0.8:
		return DayTrending
	case totalRangePct > 1.5:
		return DayVolatile
	default:
		return DayRange
	}
}

func classifyTiming(q domain.Quote, entry float64, now time.Time, firstHourEnd time.Duration) EntryTiming {
	if q.DayOpen <= 0 || q.DayHigh <= 0 {
		return TimingNormal
	}
	moveFromOpen := (q.DayHigh - q.DayOpen) / q.DayOpen * 100
	fromHigh := (entry - q.DayHigh) / q.DayHigh * 100
	sinceMidnight := time.Duration(now.Hour())*time.Hour + time.Duration(now.Minute())*time.Minute

	switch {
	case sinceMidnight < firstHourEnd && fromHigh > -0.5:
		return TimingFirstBreakout
	case fromHigh > -0.3 && moveFromOpen > 1.5:
		return TimingSecondBreakout
	case moveFromOpen > 3.0:
		return TimingLateEntry
	case fromHigh < -1.0:
		return TimingChase
	default:
		return TimingNormal
	}
}

func classifyExtension(q domain.Quote, entry float64) Extension {
	if q.DayOpen <= 0 {
		return NotExtended
	}
	movePct := (entry - q.DayOpen) / q.DayOpen * 100
	posInRange := 0.5
	if r := q.DayHigh - q.DayLow; r > 0 {
		posInRange = (entry - q.DayLow) / r
	}
	switch {
	case movePct > 3.0 && posInRange >= 0.85:
		return HighlyExtended
	case movePct >= 1.5 || posInRange >= 0.7:
		return ModeratelyExtended
	default:
		return NotExtended
	}
}

// NearestResistance takes the day high as the working level; when entry is
// already hugging it, the next level is projected 1% above.
func NearestResistance(q domain.Quote, entry float64) float64 {
	res := q.DayHigh
	if res <= 0 {
		return entry * 1.02
	}
	if math.Abs(entry-res)/entry < 0.002 {
		res = q.DayHigh * 1.01
	}
	return res
}

// Evaluate runs the checklist for a candidate entry. The hard rejects, in
// order: reward under the R:R floor, a flat index on a range day, an
// already extended instrument, chasing a pullback from the high, and a
// late entry with resistance inside one risk unit.
func (c *Checklist) Evaluate(sig *domain.Signal, q domain.Quote, indexBars []domain.Bar, now time.Time) ChecklistResult {
	tone := ClassifyIndexTone(indexBars)
	dayType := DetectDayType(indexBars)
	timing := classifyTiming(q, sig.Entry, now, c.FirstHourEnd)
	ext := classifyExtension(q, sig.Entry)
	resistance := NearestResistance(q, sig.Entry)
	rr := sig.RiskReward()
	risk := sig.RiskPerShare()

	res := ChecklistResult{
		IndexTone:  tone,
		DayType:    dayType,
		Timing:     timing,
		Extension:  ext,
		Resistance: resistance,
	}
	resistanceGap := resistance - sig.Entry
	res.Checks = []GateCheck{
		{Name: "risk_reward", Passed: rr >= c.MinRiskReward, Value: rr, Threshold: c.MinRiskReward, Description: "reward/risk at or above the floor"},
		{Name: "index_participation", Passed: !(tone == IndexFlat && dayType == DayRange), Description: "index not flat on a range day"},
		{Name: "not_extended", Passed: ext != HighlyExtended, Description: "instrument not already extended"},
		{Name: "not_chasing", Passed: timing != TimingChase, Description: "not chasing a pullback from the high"},
		{Name: "room_to_target", Passed: !(timing == TimingLateEntry && resistanceGap < risk), Value: resistanceGap, Threshold: risk, Description: "late entries need resistance beyond one risk unit"},
	}

	switch {
	case rr < c.MinRiskReward:
		res.RejectReason = fmt.Sprintf("R:R too low (%.2f:1, need >= %.1f:1)", rr, c.MinRiskReward)
	case tone == IndexFlat && dayType == DayRange:
		res.RejectReason = "flat index on a range day"
	case ext == HighlyExtended:
		res.RejectReason = "already extended, pullback risk"
	case timing == TimingChase:
		res.RejectReason = "chasing a pullback from the high"
	case timing == TimingLateEntry && resistanceGap < risk:
		res.RejectReason = "late entry with resistance within one risk unit"
	default:
		res.Allowed = true
		if tone == IndexVolatile {
			res.Warnings = append(res.Warnings, "volatile index")
		}
		if timing == TimingLateEntry {
			res.Warnings = append(res.Warnings, "late entry")
		}
	}

	log.Info().
		Str("symbol", sig.Symbol).
		Str("timing", string(timing)).
		Str("day_type", string(dayType)).
		Bool("allowed", res.Allowed).
		Str("reject_reason", res.RejectReason).
		Msg("Pre-entry checklist evaluated")
	return res
}

// VWAPGate keeps longs above and shorts below the session VWAP.
func VWAPGate(price, vwap float64, dir domain.Direction) (bool, string) {
	if vwap <= 0 {
		return true, ""
	}
	if dir == domain.Long && price < vwap {
		return false, fmt.Sprintf("long rejected: price %.2f below VWAP %.2f", price, vwap)
	}
	if dir == domain.Short && price > vwap {
		return false, fmt.Sprintf("short rejected: price %.2f above VWAP %.2f", price, vwap)
	}
	return true, ""
}

// SessionVWAP computes the session VWAP from intraday bars.
func SessionVWAP(bars []domain.Bar) float64 { return indicators.VWAP(bars) }
