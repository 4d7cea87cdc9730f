package doctor

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the doctor's operational tuning, sourced from environment
// variables so a unit file or cron entry can override any of it without a
// config deploy.
type Config struct {
	ServiceName   string // supervised systemd unit
	HealthURL     string // bot health endpoint
	ExecutionMode string // LIVE gates the freeze escalation

	FailCeiling   int      // consecutive unhealthy passes before a live freeze
	MaxLogBytes   int64    // truncate append-only logs above this size
	TruncateLines int      // tail length kept after truncation
	LogPaths      []string // append-only logs subject to truncation

	AuditPath  string
	AuditMaxMB int
	StatePath  string
	FreezePath string

	HealthTimeout      time.Duration
	ServiceTimeout     time.Duration
	RestartMinInterval time.Duration // rate limit on service restarts

	EnvProbeCmd   []string
	EnvRebuildCmd []string

	MetricsAddr string // metrics listener; empty disables it
}

// Live reports whether the execution mode permits the freeze escalation.
func (c Config) Live() bool {
	return strings.EqualFold(c.ExecutionMode, "LIVE")
}

// ConfigFromEnv builds a Config from the environment with sane defaults
// for every knob.
func ConfigFromEnv() Config {
	return Config{
		ServiceName:   getEnv("BOT_SERVICE", "stock-bot"),
		HealthURL:     getEnv("HEALTH_URL", "http://127.0.0.1:8899/health"),
		ExecutionMode: getEnv("EXECUTION_MODE", "paper"),

		FailCeiling:   getEnvInt("DOCTOR_FAIL_CEILING", 5),
		MaxLogBytes:   int64(getEnvInt("DOCTOR_MAX_LOG_MB", 50)) * 1024 * 1024,
		TruncateLines: getEnvInt("DOCTOR_TRUNC_LINES", 5000),
		LogPaths:      splitList(getEnv("DOCTOR_LOG_PATHS", "data/events.jsonl,data/trades.jsonl")),

		AuditPath:  getEnv("DOCTOR_AUDIT_PATH", "data/doctor_audit.jsonl"),
		AuditMaxMB: getEnvInt("DOCTOR_AUDIT_MAX_MB", 20),
		StatePath:  getEnv("DOCTOR_STATE_PATH", "data/doctor_state.json"),
		FreezePath: getEnv("FREEZE_PATH", "data/freeze_flags.json"),

		HealthTimeout:      getEnvDuration("DOCTOR_HEALTH_TIMEOUT", 10*time.Second),
		ServiceTimeout:     getEnvDuration("DOCTOR_SERVICE_TIMEOUT", 45*time.Second),
		RestartMinInterval: getEnvDuration("DOCTOR_RESTART_MIN_INTERVAL", 5*time.Minute),

		EnvProbeCmd:   strings.Fields(getEnv("DOCTOR_ENV_PROBE_CMD", "")),
		EnvRebuildCmd: strings.Fields(getEnv("DOCTOR_ENV_REBUILD_CMD", "")),

		MetricsAddr: strings.TrimSpace(os.Getenv("DOCTOR_METRICS_ADDR")),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
