// Package capital enforces per-strategy capital budgets so one sub-strategy
// can never consume another's share of account equity.
package capital

import (
	"math"

	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/observ"
)

// PolicySource supplies the allocation percentage for a strategy. Satisfied
// by policy.Resolver via a thin adapter in the hosting loop.
type PolicySource interface {
	AllocationPctFor(mode, strategy string) float64
}

// Decision explains one admission check. Pure return value, never persisted.
type Decision struct {
	StrategyID        string  `json:"strategy_id"`
	StrategyBudget    float64 `json:"strategy_budget"`
	StrategyUsed      float64 `json:"strategy_used"`
	StrategyAvailable float64 `json:"strategy_available"`
	RequiredNotional  float64 `json:"required_notional"`
	Allowed           bool    `json:"allowed"`
	Reason            string  `json:"reason"`
}

// Guard decides whether a proposed order's notional fits inside its
// strategy's percentage-of-equity budget. Stateless: the caller persists
// committed notional elsewhere after an order is actually placed.
type Guard struct {
	mode   string
	policy PolicySource
}

// fallbackAllocationPct is consulted when policy resolution yields nothing
// usable for a named strategy. Unlisted strategies get a zero budget:
// capital safety takes precedence over availability.
var fallbackAllocationPct = map[string]float64{
	"wheel":  25.0,
	"equity": 75.0,
}

func NewGuard(mode string, policy PolicySource) *Guard {
	return &Guard{mode: mode, policy: policy}
}

// CanAllocate checks a required notional against the strategy's remaining
// budget. Fail-closed on every edge: negative requests, zero equity, and
// unknown strategies are all denied.
func (g *Guard) CanAllocate(strategyID string, requiredNotional, totalEquity, committedNotional float64) Decision {
	d := Decision{
		StrategyID:       strategyID,
		StrategyUsed:     committedNotional,
		RequiredNotional: requiredNotional,
	}

	if requiredNotional < 0 || math.IsNaN(requiredNotional) {
		d.Reason = "negative_notional"
		observ.IncCounter("capital_admission_total", map[string]string{"result": "deny", "reason": d.Reason})
		return d
	}

	pct := g.allocationPct(strategyID)
	if pct <= 0 {
		d.Reason = "unknown_strategy"
		observ.IncCounter("capital_admission_total", map[string]string{"result": "deny", "reason": d.Reason})
		return d
	}

	if totalEquity < 0 || math.IsNaN(totalEquity) {
		totalEquity = 0
	}
	d.StrategyBudget = totalEquity * pct / 100.0
	d.StrategyAvailable = math.Max(0, d.StrategyBudget-committedNotional)

	if requiredNotional <= d.StrategyAvailable {
		d.Allowed = true
		d.Reason = "within_budget"
	} else {
		d.Reason = "budget_exceeded"
	}

	result := "deny"
	if d.Allowed {
		result = "allow"
	}
	observ.IncCounter("capital_admission_total", map[string]string{"result": result, "reason": d.Reason})
	return d
}

// allocationPct resolves the strategy's equity share, falling back to the
// hard-coded table when policy lookup yields nothing positive.
func (g *Guard) allocationPct(strategyID string) float64 {
	if g.policy != nil {
		if pct := g.policy.AllocationPctFor(g.mode, strategyID); pct > 0 && !math.IsNaN(pct) {
			return pct
		}
	}
	return fallbackAllocationPct[strategyID]
}
