// Package gate is the hosting trading loop's single admission surface. An
// entry is admitted only if, in order: no freeze flag is set (hard stop),
// the signal score clears the governor's current threshold, and the order's
// notional fits the strategy's capital budget.
package gate

import (
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/capital"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/freeze"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/governor"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/observ"
)

// Stages, in evaluation order.
const (
	StageFreeze    = "freeze"
	StageThreshold = "threshold"
	StageCapital   = "capital"
)

// Request describes one proposed entry.
type Request struct {
	Symbol            string
	StrategyID        string
	Score             float64
	RequiredNotional  float64
	TotalEquity       float64
	CommittedNotional float64
}

// Result carries the verdict plus the full audit trail of the three checks.
type Result struct {
	Allowed   bool
	Stage     string // stage that denied, empty when allowed
	Reason    string
	Threshold float64          // governor threshold in force for this decision
	Capital   capital.Decision // zero value when an earlier stage denied
	Frozen    []string         // active freeze keys, if any
}

// Pipeline wires the three decision-time components together. All checks
// are synchronous and touch at most local files; safe on the hot path.
type Pipeline struct {
	freezeFile *freeze.File
	governor   *governor.Governor
	guard      *capital.Guard
}

func NewPipeline(freezeFile *freeze.File, gov *governor.Governor, guard *capital.Guard) *Pipeline {
	return &Pipeline{freezeFile: freezeFile, governor: gov, guard: guard}
}

// Admit runs the three gates in priority order and returns the first
// denial, or an allow carrying every check's evidence.
func (p *Pipeline) Admit(req Request) Result {
	// 1. freeze flags: highest priority, re-read on every decision so a
	// freeze set concurrently by the doctor is seen immediately
	flags := p.freezeFile.Load()
	if flags.AnyActive() {
		res := Result{Stage: StageFreeze, Reason: "trading_frozen", Frozen: flags.Active()}
		p.log(req, res)
		return res
	}

	// 2. adaptive threshold: re-evaluate the streak, then compare
	if _, err := p.governor.CheckRecentTrades(); err != nil {
		observ.LogError("gate_governor_check_failed", err, nil)
	}
	threshold := p.governor.CurrentThreshold()
	if req.Score < threshold {
		res := Result{Stage: StageThreshold, Reason: "score_below_threshold", Threshold: threshold}
		p.log(req, res)
		return res
	}

	// 3. capital budget
	decision := p.guard.CanAllocate(req.StrategyID, req.RequiredNotional, req.TotalEquity, req.CommittedNotional)
	if !decision.Allowed {
		res := Result{Stage: StageCapital, Reason: decision.Reason, Threshold: threshold, Capital: decision}
		p.log(req, res)
		return res
	}

	res := Result{Allowed: true, Threshold: threshold, Capital: decision}
	p.log(req, res)
	return res
}

func (p *Pipeline) log(req Request, res Result) {
	kv := map[string]any{
		"symbol":   req.Symbol,
		"strategy": req.StrategyID,
		"score":    req.Score,
		"notional": req.RequiredNotional,
		"allowed":  res.Allowed,
	}
	if !res.Allowed {
		kv["stage"] = res.Stage
		kv["reason"] = res.Reason
	}
	observ.Log("gate_decision", kv)

	result := "deny"
	if res.Allowed {
		result = "allow"
	}
	observ.IncCounter("gate_decisions_total", map[string]string{"result": result, "stage": res.Stage})
}
