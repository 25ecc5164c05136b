// Package app runs the autoclaim process in one of its two roles.
//
// The autostart role is the background agent: it takes the autostart role
// lock, loads the job store, and keeps the claim scheduler running until
// the process is told to stop. The interactive role stands in for the
// wallet window: it takes its own role lock, registers the login item when
// configured and launches a detached agent if none is alive.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aatumaykin/autoclaim/internal/chain"
	"github.com/aatumaykin/autoclaim/internal/config"
	"github.com/aatumaykin/autoclaim/internal/instance"
	"github.com/aatumaykin/autoclaim/internal/jobstore"
	"github.com/aatumaykin/autoclaim/internal/logger"
	"github.com/aatumaykin/autoclaim/internal/notify"
	"github.com/aatumaykin/autoclaim/internal/power"
	"github.com/aatumaykin/autoclaim/internal/scheduler"
)

// ErrDisabled is returned by the agent when the job store turns auto-claim
// off. It is a clean exit.
var ErrDisabled = errors.New("quitting disabled auto claim")

// App holds one process's components and their lifecycle.
type App struct {
	config     *config.Config
	configPath string
	logger     *logger.Logger

	locks  *instance.Manager
	handle *instance.Handle

	// Agent components, set by Initialize.
	store     *jobstore.Store
	scheduler *scheduler.Scheduler
	monitor   *power.Monitor
	telegram  *notify.Telegram
	registry  *prometheus.Registry

	// Overridable collaborators.
	dial       chain.Dialer
	notifier   notify.Notifier
	spawn      Spawner
	executable func() (string, error)
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// Option configures an App.
type Option func(*App)

// WithDialer replaces the EOSIO node dialer.
func WithDialer(d chain.Dialer) Option {
	return func(a *App) { a.dial = d }
}

// WithNotifier adds n to the notification sinks.
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithSpawner replaces the agent launcher.
func WithSpawner(s Spawner) Option {
	return func(a *App) { a.spawn = s }
}

// WithConfigPath records the config file the spawned agent should use.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithClock replaces the scheduler clock.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New creates an App. Components are built by Run.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *App {
	a := &App{
		config:     cfg,
		logger:     log,
		locks:      instance.NewManager(cfg.Workspace.Path, cfg.Workspace.Product, log),
		spawn:      DetachedSpawner{},
		executable: os.Executable,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run runs the process in role until ctx is cancelled (agent) or the launch
// duties are done (interactive). A role already held elsewhere yields an
// error wrapping instance.ErrAlreadyHeld before anything is scheduled.
func (a *App) Run(ctx context.Context, role instance.Role) error {
	if err := a.EnsureWorkspace(); err != nil {
		return err
	}

	handle, err := a.locks.AcquireRoleLock(role)
	if err != nil {
		return err
	}
	a.handle = handle
	defer a.releaseLock()

	a.logger.Info("role lock acquired",
		logger.Field{Key: "role", Value: role.String()},
		logger.Field{Key: "pid", Value: os.Getpid()})

	if role == instance.RoleAutostart {
		return a.runAgent(ctx)
	}
	return a.runInteractive()
}

// EnsureWorkspace creates the workspace directory. Failure is fatal.
func (a *App) EnsureWorkspace() error {
	if err := os.MkdirAll(a.config.Workspace.Path, 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory %s: %w", a.config.Workspace.Path, err)
	}
	return nil
}

func (a *App) runAgent(ctx context.Context) error {
	a.store = jobstore.New(a.config.JobStorePath(), a.logger)
	if ac := a.store.LoadOrDisabled(); !ac.Enabled {
		a.logger.Info(ErrDisabled.Error())
		return ErrDisabled
	}

	if err := a.Initialize(ctx); err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		a.Shutdown()
		return err
	}

	a.logger.Info("autoclaim agent is running",
		logger.Field{Key: "program", Value: a.config.Agent.Program},
		logger.Field{Key: "store", Value: a.store.Path()})

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) runInteractive() error {
	if a.config.Agent.RegisterAutostart {
		if err := a.RegisterAutostart(); err != nil {
			a.logger.Error("failed to register autostart entry", err)
		}
	}
	_, err := a.EnsureAgent()
	return err
}

func (a *App) releaseLock() {
	if a.handle == nil {
		return
	}
	if err := a.handle.Release(); err != nil {
		a.logger.Error("failed to release role lock", err)
	}
}

// Scheduler returns the running scheduler, or nil.
func (a *App) Scheduler() *scheduler.Scheduler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scheduler
}

// Registry returns the metrics registry, or nil before Initialize.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}
