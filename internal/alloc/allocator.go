// Package alloc owns the per-horizon capital books: base and current
// allocation percentages, reserve/release accounting, portfolio drawdown
// protection, kill switches and the monthly rebalance.
package alloc

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/perf"
)

// Config carries the externally supplied allocation knobs. Validated once
// at construction; violations are fatal, never auto-corrected.
type Config struct {
	BasePercents      map[domain.Horizon]float64 `yaml:"base_percents"`
	MinPercent        float64                    `yaml:"min_percent"`         // floor per horizon
	MaxPercent        float64                    `yaml:"max_percent"`         // cap per horizon
	MaxMonthlyAdjust  float64                    `yaml:"max_monthly_adjust"`  // percentage points
	DrawdownWarning   float64                    `yaml:"drawdown_warning"`    // fraction, 0.10
	DrawdownCritical  float64                    `yaml:"drawdown_critical"`   // fraction, 0.15
	DailyRiskFraction float64                    `yaml:"daily_risk_fraction"` // fraction of total capital
	RebalanceInterval time.Duration              `yaml:"rebalance_interval"`
	MinTradeCapital   float64                    `yaml:"min_trade_capital"` // below this a book is blocked
}

func DefaultConfig() Config {
	return Config{
		BasePercents: map[domain.Horizon]float64{
			domain.Intraday: 15,
			domain.Swing:    35,
			domain.MidTerm:  35,
			domain.LongTerm: 15,
		},
		MinPercent:        10,
		MaxPercent:        50,
		MaxMonthlyAdjust:  10,
		DrawdownWarning:   0.10,
		DrawdownCritical:  0.15,
		DailyRiskFraction: 0.02,
		RebalanceInterval: 30 * 24 * time.Hour,
		MinTradeCapital:   1000,
	}
}

func (c Config) validate() error {
	sum := 0.0
	for _, h := range domain.Horizons {
		p, ok := c.BasePercents[h]
		if !ok {
			return fmt.Errorf("alloc: missing base percent for %s", h)
		}
		if p < 0 {
			return fmt.Errorf("alloc: negative base percent for %s", h)
		}
		sum += p
	}
	if math.Abs(sum-100) > 1e-6 {
		return fmt.Errorf("alloc: base percents sum to %.2f, want 100", sum)
	}
	if c.DrawdownWarning >= c.DrawdownCritical {
		return fmt.Errorf("alloc: warning drawdown %.2f must be below critical %.2f", c.DrawdownWarning, c.DrawdownCritical)
	}
	return nil
}

// HorizonAllocation is one book. available+used == allocated at all times;
// allocated == total × percent/100.
type HorizonAllocation struct {
	Horizon    domain.Horizon `json:"horizon"`
	BasePct    float64        `json:"base_percent"`
	CurrentPct float64        `json:"current_percent"`
	Allocated  float64        `json:"allocated"`
	Available  float64        `json:"available"`
	Used       float64        `json:"used"`
	Score      float64        `json:"score"`
	Multiplier float64        `json:"multiplier"` // 0.5-1.5
	Status     Status         `json:"status"`
}

// EffectiveAvailable is the capital a new trade may actually draw on.
func (a *HorizonAllocation) EffectiveAvailable() float64 {
	if !a.Status.Open() {
		return 0
	}
	return a.Available * a.Multiplier
}

type Allocator struct {
	mu      sync.Mutex
	cfg     Config
	tracker *perf.Tracker
	now     func() time.Time

	totalCapital  float64
	currentEquity float64
	peakEquity    float64
	riskBudget    float64
	lastRebalance time.Time
	books         map[domain.Horizon]*HorizonAllocation
}

func New(cfg Config, tracker *perf.Tracker, totalCapital float64) (*Allocator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if totalCapital <= 0 {
		return nil, fmt.Errorf("alloc: total capital must be positive, got %.2f", totalCapital)
	}
	a := &Allocator{
		cfg:           cfg,
		tracker:       tracker,
		now:           time.Now,
		totalCapital:  totalCapital,
		currentEquity: totalCapital,
		peakEquity:    totalCapital,
		riskBudget:    totalCapital * cfg.DailyRiskFraction,
		books:         make(map[domain.Horizon]*HorizonAllocation),
	}
	a.lastRebalance = a.now()
	for _, h := range domain.Horizons {
		pct := cfg.BasePercents[h]
		allocated := totalCapital * pct / 100
		a.books[h] = &HorizonAllocation{
			Horizon:    h,
			BasePct:    pct,
			CurrentPct: pct,
			Allocated:  allocated,
			Available:  allocated,
			Score:      50.0,
			Multiplier: 1.0,
			Status:     Active(),
		}
	}
	log.Info().
		Float64("total_capital", totalCapital).
		Float64("daily_risk_budget", a.riskBudget).
		Msg("Capital allocator initialized")
	return a, nil
}

// Reserve moves amount from available to used for the horizon. Fails when
// the book is blocked or killed, or the amount exceeds the effective
// available capital. Every refusal carries its reason.
func (a *Allocator) Reserve(h domain.Horizon, amount float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.books[h]

	if !b.Status.Open() {
		log.Warn().Str("horizon", h.String()).Str("reason", b.Status.Reason).Msg("Reservation refused: book not open")
		return fmt.Errorf("alloc: %s book %s: %s", h, b.Status.State, b.Status.Reason)
	}
	effective := b.Available * b.Multiplier
	if amount > effective {
		log.Warn().
			Str("horizon", h.String()).
			Float64("requested", amount).
			Float64("effective_available", effective).
			Msg("Reservation refused: insufficient capital")
		return fmt.Errorf("alloc: %s requested %.2f exceeds effective available %.2f", h, amount, effective)
	}

	b.Used += amount
	b.Available -= amount
	log.Info().
		Str("horizon", h.String()).
		Float64("reserved", amount).
		Float64("remaining", b.Available).
		Msg("Capital reserved")
	return nil
}

// Release returns amount to the book's available pool, flooring used at 0.
func (a *Allocator) Release(h domain.Horizon, amount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked(h, amount)
}

func (a *Allocator) releaseLocked(h domain.Horizon, amount float64) {
	b := a.books[h]
	if amount > b.Used {
		amount = b.Used
	}
	b.Used -= amount
	b.Available += amount
	log.Info().
		Str("horizon", h.String()).
		Float64("released", amount).
		Float64("available", b.Available).
		Msg("Capital released")
}

// OnTradeClosed settles a closed trade: the outcome feeds the performance
// tracker, the reserved capital is released, running equity and the peak
// are updated, drawdown protection runs, and all scores refresh.
func (a *Allocator) OnTradeClosed(t domain.TradeResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.currentEquity += t.NetPnL
	if a.currentEquity > a.peakEquity {
		a.peakEquity = a.currentEquity
	}
	a.tracker.RecordTradeOutcome(t.Horizon, t.NetPnL, t.Costs, a.currentEquity)
	a.releaseLocked(t.Horizon, t.Released)
	a.checkDrawdownLocked()
	a.refreshScoresLocked()
}

// checkDrawdownLocked applies the two protection tiers. Critical blocks
// the intraday book outright and caps every other multiplier at 0.5; the
// warning tier only caps.
func (a *Allocator) checkDrawdownLocked() {
	dd := a.drawdownLocked()
	switch {
	case dd >= a.cfg.DrawdownCritical:
		log.Error().Float64("drawdown", dd*100).Msg("Portfolio drawdown CRITICAL: halting intraday, halving risk")
		for h, b := range a.books {
			if h == domain.Intraday {
				if b.Status.State != StateKilled {
					b.Status = Blocked(fmt.Sprintf("critical drawdown %.1f%%", dd*100))
				}
			} else if b.Multiplier > 0.5 {
				b.Multiplier = 0.5
			}
		}
	case dd >= a.cfg.DrawdownWarning:
		log.Warn().Float64("drawdown", dd*100).Msg("Portfolio drawdown warning: halving risk across books")
		for _, b := range a.books {
			if b.Multiplier > 0.5 {
				b.Multiplier = 0.5
			}
		}
	}
}

func (a *Allocator) drawdownLocked() float64 {
	if a.peakEquity <= 0 {
		return 0
	}
	return (a.peakEquity - a.currentEquity) / a.peakEquity
}

func (a *Allocator) refreshScoresLocked() {
	for _, b := range a.books {
		b.Score = a.tracker.Score(b.Horizon, b.Allocated).Total
	}
}

// UpdateCapital rescales every book after a deposit, withdrawal or equity
// mark, and recomputes the daily risk budget.
func (a *Allocator) UpdateCapital(newTotal float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	old := a.totalCapital
	a.totalCapital = newTotal
	ratio := 1.0
	if old > 0 {
		ratio = newTotal / old
	}
	for _, b := range a.books {
		b.Allocated *= ratio
		b.Available *= ratio
		b.Used *= ratio
	}
	a.riskBudget = newTotal * a.cfg.DailyRiskFraction
	log.Info().
		Float64("old_capital", old).
		Float64("new_capital", newTotal).
		Float64("daily_risk_budget", a.riskBudget).
		Msg("Total capital updated")
}

// ResetKill manually reactivates a killed book.
func (a *Allocator) ResetKill(h domain.Horizon) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.books[h]
	if b.Status.State == StateKilled {
		b.Status = Active()
		log.Info().Str("horizon", h.String()).Msg("Kill switch manually reset")
	}
}

// AvailableCapital is the horizon's effective capital for new trades, 0
// when blocked.
func (a *Allocator) AvailableCapital(h domain.Horizon) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.books[h].EffectiveAvailable()
}

// RiskBudget is the horizon's slice of the daily risk budget.
func (a *Allocator) RiskBudget(h domain.Horizon) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.riskBudget * a.books[h].CurrentPct / 100
}

// BookStatus reports whether the horizon may open trades, with the reason
// when it may not. A book with less than the minimum trade capital counts
// as blocked even when its status is active.
func (a *Allocator) BookStatus(h domain.Horizon) (bool, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.books[h]
	if !b.Status.Open() {
		return false, b.Status.Reason
	}
	if b.Available < a.cfg.MinTradeCapital {
		return false, "insufficient capital available"
	}
	return true, ""
}

// Book returns a copy of the horizon's allocation.
func (a *Allocator) Book(h domain.Horizon) HorizonAllocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.books[h]
}

// Snapshot is the allocator state served by the status endpoint.
type Snapshot struct {
	TotalCapital  float64             `json:"total_capital"`
	CurrentEquity float64             `json:"current_equity"`
	PeakEquity    float64             `json:"peak_equity"`
	DrawdownPct   float64             `json:"drawdown_pct"`
	RiskBudget    float64             `json:"daily_risk_budget"`
	LastRebalance time.Time           `json:"last_rebalance"`
	Books         []HorizonAllocation `json:"books"`
}

func (a *Allocator) Summary() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Snapshot{
		TotalCapital:  a.totalCapital,
		CurrentEquity: a.currentEquity,
		PeakEquity:    a.peakEquity,
		DrawdownPct:   a.drawdownLocked() * 100,
		RiskBudget:    a.riskBudget,
		LastRebalance: a.lastRebalance,
	}
	for _, h := range domain.Horizons {
		s.Books = append(s.Books, *a.books[h])
	}
	return s
}
