// gate-demo evaluates one entry-admission decision through the full
// pipeline (freeze flags, adaptive threshold, capital budget) against the
// live state files, printing the verdict and its evidence. Useful for
// poking the control plane from a shell.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/capital"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/freeze"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/gate"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/governor"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/policy"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/tradelog"
)

type policyAdapter struct {
	resolver *policy.Resolver
	regime   string
	scenario string
}

func (a policyAdapter) AllocationPctFor(mode, strategy string) float64 {
	return a.resolver.Resolve(mode, strategy, a.regime, a.scenario).AllocationPct
}

func main() {
	var (
		symbol    = flag.String("symbol", "AAPL", "symbol for the proposed entry")
		strategy  = flag.String("strategy", "wheel", "strategy id")
		score     = flag.Float64("score", 0, "signal score of the proposed entry")
		notional  = flag.Float64("notional", 0, "required notional USD")
		equity    = flag.Float64("equity", 0, "total account equity USD")
		committed = flag.Float64("committed", 0, "strategy's committed notional USD")
		mode      = flag.String("mode", "paper", "execution mode")
		regime    = flag.String("regime", "", "market regime label")
		scenario  = flag.String("scenario", "", "scenario name")
		configDir = flag.String("config", "config", "policy config directory")
		dataDir   = flag.String("data", "data", "state file directory")
	)
	flag.Parse()
	_ = godotenv.Load()

	resolver := policy.NewResolver(*configDir)
	trades := tradelog.New(*dataDir + "/trades.jsonl")
	gov := governor.New(*dataDir+"/threshold_state.json", trades, governor.DefaultConfig())
	guard := capital.NewGuard(*mode, policyAdapter{resolver: resolver, regime: *regime, scenario: *scenario})
	pipeline := gate.NewPipeline(freeze.NewFile(*dataDir+"/freeze_flags.json"), gov, guard)

	result := pipeline.Admit(gate.Request{
		Symbol:            *symbol,
		StrategyID:        *strategy,
		Score:             *score,
		RequiredNotional:  *notional,
		TotalEquity:       *equity,
		CommittedNotional: *committed,
	})

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if !result.Allowed {
		os.Exit(1)
	}
}
