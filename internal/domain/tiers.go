package domain

import "time"

// QualityTier is the content-generation budget class of a registry entry.
// Ordering: tier1 > tier2 > tier3 > noindex.
type QualityTier string

const (
	Tier1   QualityTier = "tier1"
	Tier2   QualityTier = "tier2"
	Tier3   QualityTier = "tier3"
	NoIndex QualityTier = "noindex"
)

// Rank returns the tier's position for ordering comparisons; higher is better.
func (t QualityTier) Rank() int {
	switch t {
	case Tier1:
		return 3
	case Tier2:
		return 2
	case Tier3:
		return 1
	default:
		return 0
	}
}

// TierBudget describes how much content-generation effort a tier receives.
type TierBudget struct {
	WebSearches int
	LLMCalls    int
	RefreshDays int
}

var tierBudgets = map[QualityTier]TierBudget{
	Tier1:   {WebSearches: 5, LLMCalls: 3, RefreshDays: 7},
	Tier2:   {WebSearches: 2, LLMCalls: 2, RefreshDays: 14},
	Tier3:   {WebSearches: 0, LLMCalls: 1, RefreshDays: 30},
	NoIndex: {},
}

// Budget returns the effort allocation for the tier. Noindex gets nothing.
func (t QualityTier) Budget() TierBudget {
	if b, ok := tierBudgets[t]; ok {
		return b
	}
	return TierBudget{}
}

// RefreshDue reports whether content enhanced at the given time is stale
// under this tier's refresh window. Noindex content never refreshes.
func (t QualityTier) RefreshDue(enhancedAt, now time.Time) bool {
	budget := t.Budget()
	if budget.RefreshDays == 0 {
		return false
	}
	if enhancedAt.IsZero() {
		return true
	}
	return now.Sub(enhancedAt) >= time.Duration(budget.RefreshDays)*24*time.Hour
}
