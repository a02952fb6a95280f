package domain

import "time"

// Fundamentals is the slow-book quality snapshot for a symbol. Growth
// figures are fractional (0.15 == 15%). AsOf dates the snapshot; consumers
// treat stale data as missing.
type Fundamentals struct {
	Symbol           string    `json:"symbol"`
	AsOf             time.Time `json:"as_of"`
	ROE              float64   `json:"roe"`
	ROEPriorYear     float64   `json:"roe_prior_year"`
	DebtToEquity     float64   `json:"debt_to_equity"`
	RevenueGrowthYoY float64   `json:"revenue_growth_yoy"`
	ProfitGrowthYoY  float64   `json:"profit_growth_yoy"`
	RevenueCAGR3Y    float64   `json:"revenue_cagr_3y"`
	ProfitCAGR3Y     float64   `json:"profit_cagr_3y"`
	NegativeQuarters int       `json:"negative_quarters"`
}

// FundamentalsMaxAge bounds how old a snapshot may be before slow-book
// gates treat it as absent.
const FundamentalsMaxAge = 120 * 24 * time.Hour

// Fresh reports whether the snapshot is recent enough to act on.
func (f *Fundamentals) Fresh(now time.Time) bool {
	return f != nil && now.Sub(f.AsOf) <= FundamentalsMaxAge
}
