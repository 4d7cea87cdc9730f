package gate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/capital"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/freeze"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/governor"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/tradelog"
)

type fixture struct {
	pipeline *Pipeline
	freeze   *freeze.File
	trades   *tradelog.Log
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	ff := freeze.NewFile(filepath.Join(dir, "freeze_flags.json"))
	trades := tradelog.New(filepath.Join(dir, "trades.jsonl"))
	gov := governor.New(filepath.Join(dir, "threshold_state.json"), trades, governor.DefaultConfig())
	guard := capital.NewGuard("paper", nil) // fallback table: wheel 25%, equity 75%
	return fixture{
		pipeline: NewPipeline(ff, gov, guard),
		freeze:   ff,
		trades:   trades,
	}
}

func (f fixture) appendTrades(t *testing.T, pnls ...float64) {
	t.Helper()
	for _, pnl := range pnls {
		p := pnl
		require.NoError(t, f.trades.AppendClose(tradelog.Close{Symbol: "TEST", PnLPct: &p}))
	}
}

func wheelRequest(notional float64) Request {
	return Request{
		Symbol:            "AAPL",
		StrategyID:        "wheel",
		Score:             9.0,
		RequiredNotional:  notional,
		TotalEquity:       200_000,
		CommittedNotional: 40_000,
	}
}

func TestAdmitAllowsAtCapitalBoundary(t *testing.T) {
	f := newFixture(t)

	// wheel: 25% of 200k = 50k budget, 40k committed, 10k available
	res := f.pipeline.Admit(wheelRequest(10_000))
	require.True(t, res.Allowed, "exact boundary must be allowed: %+v", res)
	require.Equal(t, 50_000.0, res.Capital.StrategyBudget)
	require.Equal(t, 10_000.0, res.Capital.StrategyAvailable)
}

func TestAdmitDeniesJustOverCapitalBoundary(t *testing.T) {
	f := newFixture(t)

	res := f.pipeline.Admit(wheelRequest(10_000.01))
	require.False(t, res.Allowed)
	require.Equal(t, StageCapital, res.Stage)
	require.Equal(t, "budget_exceeded", res.Reason)
}

func TestAdmitFreezeOverridesEverything(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.freeze.Set(freeze.KeyDoctor))

	res := f.pipeline.Admit(wheelRequest(1))
	require.False(t, res.Allowed)
	require.Equal(t, StageFreeze, res.Stage)
	require.Contains(t, res.Frozen, freeze.KeyDoctor)
}

func TestAdmitLosingStreakRaisesBar(t *testing.T) {
	f := newFixture(t)
	f.appendTrades(t, -1, -1, -1)

	req := wheelRequest(1_000)
	req.Score = 7.2 // clears the 7.0 baseline but not the elevated 7.5

	res := f.pipeline.Admit(req)
	require.False(t, res.Allowed)
	require.Equal(t, StageThreshold, res.Stage)
	require.Equal(t, 7.5, res.Threshold)

	req.Score = 7.5
	res = f.pipeline.Admit(req)
	require.True(t, res.Allowed)
}

func TestAdmitMixedRecentTradesStaysAtBaseline(t *testing.T) {
	f := newFixture(t)
	f.appendTrades(t, 2, -1, -1)

	req := wheelRequest(1_000)
	req.Score = 7.2

	res := f.pipeline.Admit(req)
	require.True(t, res.Allowed, "baseline threshold should admit 7.2: %+v", res)
	require.Equal(t, 7.0, res.Threshold)
}

func TestAdmitWinAfterStreakRelaxesBar(t *testing.T) {
	f := newFixture(t)
	f.appendTrades(t, -1, -1, -1)

	req := wheelRequest(1_000)
	req.Score = 7.2
	require.False(t, f.pipeline.Admit(req).Allowed)

	f.appendTrades(t, 3.0)
	res := f.pipeline.Admit(req)
	require.True(t, res.Allowed, "win should reset the governor: %+v", res)
	require.Equal(t, 7.0, res.Threshold)
}

func TestAdmitCheckOrderFreezeBeforeThreshold(t *testing.T) {
	f := newFixture(t)
	f.appendTrades(t, -1, -1, -1)
	require.NoError(t, f.freeze.Set("production_freeze"))

	req := wheelRequest(1_000)
	req.Score = 0 // would fail threshold too

	res := f.pipeline.Admit(req)
	require.Equal(t, StageFreeze, res.Stage, "freeze must be reported, not the threshold")
}
