package regime

import "github.com/sawpanic/horizon/internal/domain"

// SizeMultiplier scales planned position size by regime. Hostile regimes
// cut size hard; a high-confidence trend gets full size.
func SizeMultiplier(r *Reading) float64 {
	if r == nil {
		return 0
	}
	switch r.Label {
	case HighVolatility:
		return 0.5
	case Range:
		return 0.6
	default:
		if r.Confidence > 0.8 {
			return 1.0
		}
		return 0.8
	}
}

// AllowsEntry reports whether the horizon may open new positions under the
// reading. The slow books sit out both chop and volatility spikes; the
// intraday book may still work a RANGE day at reduced size.
func AllowsEntry(r *Reading, h domain.Horizon) bool {
	if r == nil {
		return false
	}
	switch r.Label {
	case HighVolatility:
		return false
	case Range:
		return h == domain.Intraday
	default:
		return true
	}
}
