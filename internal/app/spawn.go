package app

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/aatumaykin/autoclaim/internal/autostart"
	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/instance"
	"github.com/aatumaykin/autoclaim/internal/jobstore"
	"github.com/aatumaykin/autoclaim/internal/logger"
)

// Spawner starts a process that outlives its parent.
type Spawner interface {
	Spawn(exe string, args []string) (pid int, err error)
}

// DetachedSpawner starts the process in its own session with no stdio.
type DetachedSpawner struct{}

// Spawn implements Spawner.
func (DetachedSpawner) Spawn(exe string, args []string) (int, error) {
	cmd := exec.Command(exe, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, err
	}
	return pid, nil
}

// SpawnDecision explains what EnsureAgent did.
type SpawnDecision struct {
	Spawned bool
	PID     int
	Reason  string
}

// EnsureAgent launches a detached autostart agent when spawning is allowed,
// the job store is enabled with at least one job, and no agent holds the
// autostart role.
func (a *App) EnsureAgent() (SpawnDecision, error) {
	if !a.config.ShouldSpawnAgent() {
		return a.skip("agent spawning disabled in config"), nil
	}

	store := jobstore.New(a.config.JobStorePath(), a.logger)
	ac := store.LoadOrDisabled()
	if !ac.Enabled {
		return a.skip("auto claim disabled"), nil
	}
	if p := ac.Program(a.config.Agent.Program); p == nil || len(p.Jobs) == 0 {
		return a.skip("no claim jobs configured"), nil
	}

	if held, pid := a.locks.Inspect(instance.RoleAutostart); held {
		d := a.skip("agent already running")
		d.PID = pid
		return d, nil
	}

	exe, err := a.executable()
	if err != nil {
		return SpawnDecision{}, fmt.Errorf("failed to resolve executable: %w", err)
	}
	pid, err := a.spawn.Spawn(exe, a.agentArgs())
	if err != nil {
		return SpawnDecision{}, fmt.Errorf("failed to spawn agent: %w", err)
	}
	a.logger.Info("autoclaim agent launched", logger.Field{Key: "pid", Value: pid})
	return SpawnDecision{Spawned: true, PID: pid, Reason: "launched"}, nil
}

func (a *App) skip(reason string) SpawnDecision {
	a.logger.Debug("not launching agent", logger.Field{Key: "reason", Value: reason})
	return SpawnDecision{Reason: reason}
}

func (a *App) agentArgs() []string {
	var args []string
	if a.configPath != "" {
		args = append(args, "--config", a.configPath)
	}
	return append(args, constants.AutostartFlag)
}

// RegisterAutostart writes the login item that starts the agent.
func (a *App) RegisterAutostart() error {
	entry, err := autostart.New(os.Getenv("AUTOCLAIM_AUTOSTART_DIR"), a.config.Workspace.Product)
	if err != nil {
		return err
	}
	exe, err := a.executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}
	var args []string
	if a.configPath != "" {
		args = []string{"--config", a.configPath}
	}
	if err := entry.Enable(exe, args...); err != nil {
		return err
	}
	a.logger.Info("autostart entry registered", logger.Field{Key: "path", Value: entry.Path()})
	return nil
}
