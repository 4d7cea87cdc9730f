// Package doctor is the health-remediation loop: a periodic, idempotent
// pass that polls the supervised trading service, classifies degradation,
// and takes one of a small set of actions (log hygiene, restart, env
// rebuild, or freezing new trading). It is the only component with the
// authority to halt trading outright.
package doctor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/freeze"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/observ"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/statefile"
)

// Pass outcomes for reporting and metrics.
const (
	OutcomeOK          = "ok"
	OutcomeRestarted   = "restarted"
	OutcomeRebuilt     = "rebuilt"
	OutcomeFrozen      = "frozen"
	OutcomeNoAction    = "no_action"
	OutcomeUnreachable = "unreachable"
	OutcomeError       = "error"
)

// State is the doctor's persisted record, updated after every pass so the
// next pass always sees current escalation context.
type State struct {
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastAction          string `json:"last_action"`
	LastOKTs            *int64 `json:"last_ok_ts"`
	UpdatedAt           int64  `json:"updated_at"`
}

// PassReport summarizes one pass for the caller and the audit trail.
type PassReport struct {
	Outcome             string
	Action              string
	ConsecutiveFailures int
}

// Doctor runs one remediation pass per invocation. Passes are scheduled
// externally and never overlap; there is no in-process locking between
// passes.
type Doctor struct {
	cfg          Config
	svc          ServiceManager
	health       HealthClient
	env          EnvManager
	freezeFile   *freeze.File
	audit        *Audit
	restartLimit *rate.Limiter
	now          func() time.Time
}

func New(cfg Config, svc ServiceManager, health HealthClient, env EnvManager) *Doctor {
	interval := cfg.RestartMinInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Doctor{
		cfg:          cfg,
		svc:          svc,
		health:       health,
		env:          env,
		freezeFile:   freeze.NewFile(cfg.FreezePath),
		audit:        NewAudit(cfg.AuditPath, cfg.AuditMaxMB),
		restartLimit: rate.NewLimiter(rate.Every(interval), 1),
		now:          time.Now,
	}
}

// RunPass executes one full check-and-remediate cycle. It never panics out
// and never returns an error to the scheduler: every failure mode inside a
// pass degrades to an audited no-op.
func (d *Doctor) RunPass(ctx context.Context) (report PassReport) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			report = PassReport{Outcome: OutcomeError, Action: "none"}
			d.audit.Record("pass_panic", map[string]any{"panic": fmt.Sprint(r)})
			observ.Log("doctor_pass_panic", map[string]any{"panic": fmt.Sprint(r)})
		}
		observ.IncCounter("doctor_passes_total", map[string]string{"outcome": report.Outcome})
		observ.RecordDuration("doctor_pass", time.Since(start), map[string]string{"outcome": report.Outcome})
	}()

	st := d.loadState()

	// 1. unconditional housekeeping; must never fail the pass
	d.truncateLogs()

	// 2. is the service even running?
	active, err := d.svc.IsActive(ctx, d.cfg.ServiceName)
	if err != nil || !active {
		reason := "service_inactive"
		if err != nil {
			reason = "service_status_unknown"
			observ.LogError("doctor_service_status_failed", err, nil)
		}
		action := d.restartService(ctx, reason)
		st.LastAction = action
		d.saveState(st)
		return PassReport{Outcome: OutcomeRestarted, Action: action, ConsecutiveFailures: st.ConsecutiveFailures}
	}

	// 3. health endpoint; network failure or garbage == unreachable
	reportPayload, err := d.health.Fetch(ctx)
	if err != nil {
		observ.LogError("doctor_health_unreachable", err, nil)
		action := d.restartService(ctx, "health_unreachable")
		st.LastAction = action
		d.saveState(st)
		return PassReport{Outcome: OutcomeUnreachable, Action: action, ConsecutiveFailures: st.ConsecutiveFailures}
	}

	// 4. healthy: clear the failure streak and stand down
	if reportPayload.OverallHealthy {
		ts := d.now().Unix()
		st.ConsecutiveFailures = 0
		st.LastAction = "none"
		st.LastOKTs = &ts
		d.saveState(st)
		observ.SetGauge("doctor_consecutive_failures", 0, nil)
		return PassReport{Outcome: OutcomeOK, Action: "none"}
	}

	// 5. unhealthy: bump the streak, isolate the critical failures
	st.ConsecutiveFailures++
	critical := reportPayload.CriticalFailures()
	observ.SetGauge("doctor_consecutive_failures", float64(st.ConsecutiveFailures), nil)
	observ.Log("doctor_unhealthy", map[string]any{
		"consecutive_failures": st.ConsecutiveFailures,
		"critical_failing":     len(critical),
	})

	// 6. live escalation: stop trading rather than keep kicking a service
	// that keeps falling over
	if d.cfg.Live() && st.ConsecutiveFailures >= d.cfg.FailCeiling && len(critical) > 0 {
		d.setFreeze(critical)
		st.LastAction = "freeze"
		d.saveState(st)
		return PassReport{Outcome: OutcomeFrozen, Action: "freeze", ConsecutiveFailures: st.ConsecutiveFailures}
	}

	// 7. bounded self-repair
	if err := d.env.Probe(ctx); err != nil {
		observ.LogError("doctor_env_probe_failed", err, nil)
		action := d.rebuildEnv(ctx)
		st.LastAction = action
		d.saveState(st)
		return PassReport{Outcome: OutcomeRebuilt, Action: action, ConsecutiveFailures: st.ConsecutiveFailures}
	}
	if len(critical) > 0 {
		action := d.restartService(ctx, "critical_checks_failing")
		st.LastAction = action
		d.saveState(st)
		return PassReport{Outcome: OutcomeRestarted, Action: action, ConsecutiveFailures: st.ConsecutiveFailures}
	}

	// only cosmetic degradation: restarting would be churn
	st.LastAction = "none"
	d.saveState(st)
	return PassReport{Outcome: OutcomeNoAction, Action: "none", ConsecutiveFailures: st.ConsecutiveFailures}
}

// truncateLogs bounds the bot's append-only logs. Errors are audited and
// ignored; housekeeping never blocks remediation.
func (d *Doctor) truncateLogs() {
	for _, path := range d.cfg.LogPaths {
		truncated, err := TruncateTail(path, d.cfg.MaxLogBytes, d.cfg.TruncateLines)
		if err != nil {
			observ.LogError("doctor_truncate_failed", err, map[string]any{"path": path})
			continue
		}
		if truncated {
			d.audit.Record("log_truncated", map[string]any{
				"path":       path,
				"kept_lines": d.cfg.TruncateLines,
			})
		}
	}
}

// restartService restarts the supervised unit, rate limited so a flapping
// service is not hammered every pass. Returns the action taken for
// DoctorState bookkeeping.
func (d *Doctor) restartService(ctx context.Context, reason string) string {
	if !d.restartLimit.Allow() {
		d.audit.Record("restart_suppressed", map[string]any{"reason": reason})
		return "restart_suppressed"
	}
	if err := d.svc.Restart(ctx, d.cfg.ServiceName); err != nil {
		observ.LogError("doctor_restart_failed", err, map[string]any{"service": d.cfg.ServiceName})
		d.audit.Record("restart_failed", map[string]any{"reason": reason, "error": err.Error()})
		return "restart_failed"
	}
	d.audit.Record("service_restarted", map[string]any{"service": d.cfg.ServiceName, "reason": reason})
	observ.IncCounter("doctor_restarts_total", map[string]string{"reason": reason})
	return "restart"
}

// rebuildEnv rebuilds the runtime dependency environment and then restarts
// the service so it picks the rebuilt environment up.
func (d *Doctor) rebuildEnv(ctx context.Context) string {
	if err := d.env.Rebuild(ctx); err != nil {
		observ.LogError("doctor_env_rebuild_failed", err, nil)
		d.audit.Record("env_rebuild_failed", map[string]any{"error": err.Error()})
		return "rebuild_failed"
	}
	d.audit.Record("env_rebuilt", nil)
	observ.IncCounter("doctor_env_rebuilds_total", nil)
	d.restartService(ctx, "env_rebuilt")
	return "rebuild"
}

// setFreeze sets the sticky freeze flags. The doctor never clears them.
func (d *Doctor) setFreeze(critical []HealthCheck) {
	names := make([]string, 0, len(critical))
	for _, c := range critical {
		names = append(names, c.Name)
	}
	for _, key := range []string{freeze.KeyDoctor, freeze.KeyProduction} {
		if err := d.freezeFile.Set(key); err != nil {
			observ.LogError("doctor_freeze_write_failed", err, map[string]any{"key": key})
		}
	}
	d.audit.Record("trading_frozen", map[string]any{
		"critical_checks": names,
		"fail_ceiling":    d.cfg.FailCeiling,
	})
	observ.IncCounter("doctor_freezes_total", nil)
}

func (d *Doctor) loadState() State {
	var st State
	if _, err := statefile.Load(d.cfg.StatePath, &st); err != nil {
		// a corrupt state record must not stop remediation; start the
		// escalation count over
		observ.LogError("doctor_state_read_failed", err, nil)
		return State{}
	}
	return st
}

func (d *Doctor) saveState(st State) {
	st.UpdatedAt = d.now().Unix()
	if err := statefile.Save(d.cfg.StatePath, st); err != nil {
		observ.LogError("doctor_state_write_failed", err, nil)
	}
}
