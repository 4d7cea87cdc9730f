package doctor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ServiceManager abstracts the platform service manager so the pass logic
// is testable without systemd.
type ServiceManager interface {
	IsActive(ctx context.Context, name string) (bool, error)
	Restart(ctx context.Context, name string) error
}

// SystemdManager drives systemctl with bounded timeouts.
type SystemdManager struct {
	timeout time.Duration
}

func NewSystemdManager(timeout time.Duration) *SystemdManager {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &SystemdManager{timeout: timeout}
}

// IsActive runs `systemctl is-active --quiet`. A nonzero exit means the
// unit is inactive, which is an answer, not an error.
func (m *SystemdManager) IsActive(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "systemctl", "is-active", "--quiet", name)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("systemctl is-active %s: %w", name, err)
}

func (m *SystemdManager) Restart(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if out, err := exec.CommandContext(ctx, "systemctl", "restart", name).CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl restart %s: %w (%s)", name, err, string(out))
	}
	return nil
}

// EnvManager probes and rebuilds the supervised service's runtime
// dependency environment (the bot's virtualenv in production).
type EnvManager interface {
	Probe(ctx context.Context) error
	Rebuild(ctx context.Context) error
}

// CommandEnvManager runs configured shell commands for probe and rebuild.
type CommandEnvManager struct {
	probe   []string
	rebuild []string
	timeout time.Duration
}

func NewCommandEnvManager(probe, rebuild []string, timeout time.Duration) *CommandEnvManager {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &CommandEnvManager{probe: probe, rebuild: rebuild, timeout: timeout}
}

func (m *CommandEnvManager) Probe(ctx context.Context) error {
	return m.run(ctx, m.probe, "env probe")
}

func (m *CommandEnvManager) Rebuild(ctx context.Context) error {
	return m.run(ctx, m.rebuild, "env rebuild")
}

func (m *CommandEnvManager) run(ctx context.Context, argv []string, what string) error {
	if len(argv) == 0 {
		return nil // not configured: treat as passing
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w (%s)", what, err, string(out))
	}
	return nil
}
