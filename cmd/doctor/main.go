// Doctor keeps the trading process alive. One pass checks the supervised
// service, its health endpoint, and the runtime environment, then applies
// the least-drastic remediation that fits. Run it one-shot from cron/systemd
// (-once) or let it schedule itself (-schedule).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/doctor"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/observ"
)

func main() {
	once := flag.Bool("once", false, "run a single pass and exit (cron/systemd-timer mode)")
	schedule := flag.String("schedule", "@every 60s", "cron spec for the internal scheduler")
	envFile := flag.String("env", ".env", "env file with doctor configuration (optional)")
	flag.Parse()

	// env file is optional sugar; real deployments set vars in the unit file
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		observ.LogError("doctor_env_file_failed", err, map[string]any{"path": *envFile})
	}

	cfg := doctor.ConfigFromEnv()
	d := doctor.New(
		cfg,
		doctor.NewSystemdManager(cfg.ServiceTimeout),
		doctor.NewHTTPHealthClient(cfg.HealthURL, cfg.HealthTimeout),
		doctor.NewCommandEnvManager(cfg.EnvProbeCmd, cfg.EnvRebuildCmd, cfg.ServiceTimeout),
	)

	observ.Log("doctor_started", map[string]any{
		"service":        cfg.ServiceName,
		"health_url":     cfg.HealthURL,
		"execution_mode": cfg.ExecutionMode,
		"fail_ceiling":   cfg.FailCeiling,
		"once":           *once,
	})

	if *once {
		report := d.RunPass(context.Background())
		observ.Log("doctor_pass_done", map[string]any{
			"outcome":              report.Outcome,
			"action":               report.Action,
			"consecutive_failures": report.ConsecutiveFailures,
		})
		return
	}

	// internal scheduler mode: a slow pass delays the next one, passes
	// never overlap
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observ.Handler())
		observ.Log("metrics_listen", map[string]any{"addr": cfg.MetricsAddr})
		go func() { _ = http.ListenAndServe(cfg.MetricsAddr, mux) }()
	}

	c := cron.New(cron.WithChain(cron.DelayIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(*schedule, func() {
		report := d.RunPass(ctx)
		observ.Log("doctor_pass_done", map[string]any{
			"outcome":              report.Outcome,
			"action":               report.Action,
			"consecutive_failures": report.ConsecutiveFailures,
		})
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -schedule %q: %v\n", *schedule, err)
		os.Exit(1)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	observ.Log("doctor_stopped", nil)
}
