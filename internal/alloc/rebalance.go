package alloc

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/domain"
)

const (
	highScoreThreshold = 70.0
	lowScoreThreshold  = 40.0
	stepPct            = 5.0
)

// RebalanceChange records one horizon's percent move for the audit log.
type RebalanceChange struct {
	Horizon domain.Horizon `json:"horizon"`
	OldPct  float64        `json:"old_pct"`
	NewPct  float64        `json:"new_pct"`
	Score   float64        `json:"score"`
}

// Kill records a kill-switch trip for the caller to publish.
type Kill struct {
	Horizon domain.Horizon `json:"horizon"`
	Reason  string         `json:"reason"`
}

// CheckAndRebalance runs the monthly cycle when due: refresh scores, sweep
// kill switches, then retune percentages. Returns the percent changes and
// any books newly killed; both nil when not due, so re-running after a
// crash is harmless.
func (a *Allocator) CheckAndRebalance() ([]RebalanceChange, []Kill) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.now().Sub(a.lastRebalance) < a.cfg.RebalanceInterval {
		return nil, nil
	}
	log.Info().Msg("Monthly rebalancing triggered")

	a.refreshScoresLocked()
	kills := a.sweepKillSwitchesLocked()
	return a.rebalanceLocked(), kills
}

func (a *Allocator) sweepKillSwitchesLocked() []Kill {
	var kills []Kill
	for _, h := range domain.Horizons {
		if kill, reason := a.tracker.ShouldKill(h); kill {
			b := a.books[h]
			if b.Status.State != StateKilled {
				b.Status = Killed("poor performance: " + reason)
				kills = append(kills, Kill{Horizon: h, Reason: reason})
				log.Error().Str("horizon", h.String()).Str("reason", reason).Msg("Strategy killed")
			}
		}
	}
	return kills
}

// rebalanceLocked proposes ±5 point moves by score, clamps each book to
// its bounds and the monthly limit, renormalizes so percents sum to
// exactly 100, then reprices capital. Available and used scale together
// so available+used keeps matching allocated.
func (a *Allocator) rebalanceLocked() []RebalanceChange {
	proposed := make(map[domain.Horizon]float64, len(a.books))
	total := 0.0
	for _, h := range domain.Horizons {
		b := a.books[h]
		newPct := b.CurrentPct
		switch {
		case b.Score >= highScoreThreshold:
			newPct = math.Min(a.cfg.MaxPercent, b.CurrentPct+stepPct)
		case b.Score < lowScoreThreshold:
			newPct = math.Max(a.cfg.MinPercent, b.CurrentPct-stepPct)
		}
		if change := newPct - b.CurrentPct; math.Abs(change) > a.cfg.MaxMonthlyAdjust {
			if change > 0 {
				newPct = b.CurrentPct + a.cfg.MaxMonthlyAdjust
			} else {
				newPct = b.CurrentPct - a.cfg.MaxMonthlyAdjust
			}
		}
		proposed[h] = newPct
		total += newPct
	}

	factor := 1.0
	if total > 0 {
		factor = 100.0 / total
	}

	changes := make([]RebalanceChange, 0, len(a.books))
	for _, h := range domain.Horizons {
		b := a.books[h]
		oldPct := b.CurrentPct
		oldAllocated := b.Allocated

		b.CurrentPct = proposed[h] * factor
		b.Allocated = a.totalCapital * b.CurrentPct / 100
		if oldAllocated > 0 {
			ratio := b.Allocated / oldAllocated
			b.Available = math.Max(0, b.Available*ratio)
			b.Used = b.Allocated - b.Available
		} else {
			b.Available = b.Allocated
			b.Used = 0
		}

		changes = append(changes, RebalanceChange{Horizon: h, OldPct: oldPct, NewPct: b.CurrentPct, Score: b.Score})
		log.Info().
			Str("horizon", h.String()).
			Float64("score", b.Score).
			Float64("old_pct", oldPct).
			Float64("new_pct", b.CurrentPct).
			Float64("allocated", b.Allocated).
			Msg("Allocation retuned")
	}
	a.lastRebalance = a.now()
	return changes
}
