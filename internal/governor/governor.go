// Package governor implements the adaptive admission threshold: a circuit
// breaker that raises the minimum qualifying entry score after a losing
// streak and relaxes back to baseline after a win or a cooldown window.
package governor

import (
	"sync"
	"time"

	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/observ"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/statefile"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/tradelog"
)

// State represents the governor's current posture.
type State string

const (
	StateBaseline State = "baseline" // adjustment 0, normal admission bar
	StateElevated State = "elevated" // losing streak detected, bar raised by the step
)

// ThresholdState is the persisted record. Timestamps are unix seconds;
// ActivatedAt is non-null iff Adjustment > 0.
type ThresholdState struct {
	BaseThreshold     float64 `json:"base_threshold"`
	Adjustment        float64 `json:"adjustment"`
	ActivatedAt       *int64  `json:"activated_at"`
	LastResetAt       *int64  `json:"last_reset_at"`
	ConsecutiveLosses int     `json:"consecutive_losses"`
	UpdatedAt         int64   `json:"updated_at"`
}

func (s ThresholdState) state() State {
	if s.Adjustment > 0 {
		return StateElevated
	}
	return StateBaseline
}

// Config holds the governor's tuning knobs.
type Config struct {
	BaseThreshold  float64       // minimum qualifying score at baseline
	Step           float64       // fixed bump applied while elevated
	LookbackTrades int           // streak length that triggers elevation
	Cooldown       time.Duration // elevation self-expires after this long
}

// DefaultConfig matches the production tuning: three straight losses raise
// the bar by half a point for at most 24 hours.
func DefaultConfig() Config {
	return Config{
		BaseThreshold:  7.0,
		Step:           0.5,
		LookbackTrades: 3,
		Cooldown:       24 * time.Hour,
	}
}

// Governor owns the threshold state file (single writer). Reads the shared
// trade log; persists only on state transitions to keep write churn down.
type Governor struct {
	mu        sync.Mutex
	cfg       Config
	statePath string
	trades    *tradelog.Log
	now       func() time.Time
}

func New(statePath string, trades *tradelog.Log, cfg Config) *Governor {
	if cfg.BaseThreshold == 0 {
		cfg.BaseThreshold = DefaultConfig().BaseThreshold
	}
	if cfg.Step == 0 {
		cfg.Step = DefaultConfig().Step
	}
	if cfg.LookbackTrades == 0 {
		cfg.LookbackTrades = DefaultConfig().LookbackTrades
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	return &Governor{
		cfg:       cfg,
		statePath: statePath,
		trades:    trades,
		now:       time.Now,
	}
}

// CurrentThreshold returns base + adjustment. Must be consulted before every
// entry admission. Any problem reading state degrades to the configured
// baseline rather than failing the decision.
func (g *Governor) CurrentThreshold() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, err := g.loadState()
	if err != nil {
		observ.LogError("governor_state_read_failed", err, nil)
		return g.cfg.BaseThreshold
	}
	return st.BaseThreshold + st.Adjustment
}

// CheckRecentTrades evaluates the streak state machine against the most
// recent completed trades and persists any transition immediately. Returns
// the resulting state; errors are reading/persistence problems, never a
// reason to block trading.
func (g *Governor) CheckRecentTrades() (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, err := g.loadState()
	if err != nil {
		observ.LogError("governor_state_read_failed", err, nil)
		return StateBaseline, err
	}

	closes, readErr := g.trades.Tail(g.cfg.LookbackTrades)
	if readErr != nil {
		observ.LogError("governor_trades_read_failed", readErr, nil)
	}

	// An unreadable or too-short history tells us nothing about the streak:
	// keep the current posture and let only the cooldown expire a stale
	// elevation.
	historyKnown := readErr == nil && len(closes) >= g.cfg.LookbackTrades

	now := g.now()
	streakOfLosses := historyKnown && allLosses(closes)

	switch st.state() {
	case StateBaseline:
		if streakOfLosses {
			g.elevate(&st, now)
			if err := g.saveState(st); err != nil {
				return StateBaseline, err
			}
			return StateElevated, nil
		}
		return StateBaseline, nil

	case StateElevated:
		expired := st.ActivatedAt != nil && now.Sub(time.Unix(*st.ActivatedAt, 0)) >= g.cfg.Cooldown
		if expired || (historyKnown && !streakOfLosses) {
			reason := "win_observed"
			if expired {
				reason = "cooldown_elapsed"
			}
			g.resetToBaseline(&st, now, reason)
			if err := g.saveState(st); err != nil {
				return StateElevated, err
			}
			return StateBaseline, nil
		}
		return StateElevated, nil
	}
	return st.state(), nil
}

// Snapshot returns a copy of the persisted record for dashboards/tests.
func (g *Governor) Snapshot() (ThresholdState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loadState()
}

func (g *Governor) elevate(st *ThresholdState, now time.Time) {
	ts := now.Unix()
	st.Adjustment = g.cfg.Step
	st.ActivatedAt = &ts
	st.ConsecutiveLosses = g.cfg.LookbackTrades

	observ.Log("governor_elevated", map[string]any{
		"base_threshold": st.BaseThreshold,
		"adjustment":     st.Adjustment,
		"losses":         st.ConsecutiveLosses,
	})
	observ.IncCounter("governor_transitions_total", map[string]string{"to": string(StateElevated)})
	observ.SetGauge("governor_adjustment", st.Adjustment, nil)
}

func (g *Governor) resetToBaseline(st *ThresholdState, now time.Time, reason string) {
	ts := now.Unix()
	st.Adjustment = 0
	st.ActivatedAt = nil
	st.LastResetAt = &ts
	st.ConsecutiveLosses = 0

	observ.Log("governor_reset", map[string]any{
		"reason":         reason,
		"base_threshold": st.BaseThreshold,
	})
	observ.IncCounter("governor_transitions_total", map[string]string{"to": string(StateBaseline)})
	observ.SetGauge("governor_adjustment", 0, nil)
}

func (g *Governor) loadState() (ThresholdState, error) {
	st := ThresholdState{BaseThreshold: g.cfg.BaseThreshold}
	found, err := statefile.Load(g.statePath, &st)
	if err != nil {
		return ThresholdState{BaseThreshold: g.cfg.BaseThreshold}, err
	}
	if !found {
		return st, nil
	}
	if st.BaseThreshold == 0 {
		st.BaseThreshold = g.cfg.BaseThreshold
	}
	return st, nil
}

func (g *Governor) saveState(st ThresholdState) error {
	st.UpdatedAt = g.now().Unix()
	if err := statefile.Save(g.statePath, st); err != nil {
		observ.LogError("governor_state_write_failed", err, nil)
		return err
	}
	return nil
}

func allLosses(closes []tradelog.Close) bool {
	for _, c := range closes {
		if !c.IsLoss() {
			return false
		}
	}
	return len(closes) > 0
}
