// Package scheduler runs the per-job claim loop of the agent: evaluate the
// job's chain state, claim when due, persist the decision, then arm a
// one-shot timer for the next evaluation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/aatumaykin/autoclaim/internal/artifacts"
	"github.com/aatumaykin/autoclaim/internal/claim"
	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/jobstore"
	"github.com/aatumaykin/autoclaim/internal/logger"
	"github.com/aatumaykin/autoclaim/internal/notify"
)

// Evaluator reads a job's last claim instant from the chain.
type Evaluator interface {
	GetClaimTime(ctx context.Context, endpoints []string, account string) (last time.Time, found, ok bool, err error)
}

// Executor submits a claim.
type Executor interface {
	Claim(ctx context.Context, req claim.Request) (string, error)
}

// SecretSource looks up signing keys.
type SecretSource interface {
	GetSecret(service, keyID string) (string, error)
}

// DiagnosticWriter records failed attempts.
type DiagnosticWriter interface {
	WriteDiagnostic(d artifacts.Diagnostic) (string, error)
}

// Observer receives scheduling decisions, typically for metrics.
type Observer interface {
	ObserveDecision(program string, state State)
	ObserveClaim(program string, ok bool, reason string)
	SetArmedTimers(n int)
}

// Deps are the scheduler's collaborators.
type Deps struct {
	Store             *jobstore.Store
	Evaluator         Evaluator
	Executor          Executor
	Secrets           SecretSource
	CredentialService string
	Diagnostics       DiagnosticWriter
	Notifier          notify.Notifier
	Observer          Observer
	Logger            *logger.Logger
	Now               func() time.Time
}

// Config holds scheduling parameters.
type Config struct {
	Program     string
	ClaimWindow time.Duration
	RetryDelay  time.Duration
}

// Scheduler owns the timers of every job of one program.
type Scheduler struct {
	deps   Deps
	cfg    Config
	logger *logger.Logger
	now    func() time.Time

	cron   *cron.Cron
	flight singleflight.Group

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	entries map[string]cron.EntryID
	nextRun map[string]time.Time
	states  map[string]State
}

// New creates a Scheduler.
func New(cfg Config, deps Deps) *Scheduler {
	if cfg.Program == "" {
		cfg.Program = constants.DefaultProgram
	}
	if cfg.ClaimWindow <= 0 {
		cfg.ClaimWindow = constants.ClaimWindow
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = constants.RetryDelay
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.CredentialService == "" {
		deps.CredentialService = constants.DefaultCredentialSvc
	}

	cronLog := logger.NewCronLogger(deps.Logger)
	return &Scheduler{
		deps:    deps,
		cfg:     cfg,
		logger:  deps.Logger.With(logger.Field{Key: "program", Value: cfg.Program}),
		now:     deps.Now,
		cron:    cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog))),
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
		nextRun: make(map[string]time.Time),
		states:  make(map[string]State),
	}
}

// Start restores timers from the persisted next-claim instants, starts the
// timer loop and launches an evaluation of every job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.started = true
	s.wg.Add(1)
	s.mu.Unlock()

	s.restore()
	s.cron.Start()
	s.logger.Info("scheduler started")

	go func() {
		defer s.wg.Done()
		s.ReevaluateAll(runCtx)
	}()
	return nil
}

// Stop cancels in-flight work, stops the timer loop and waits for running
// evaluations to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped", logger.Field{Key: "armed", Value: s.Armed()})
}

// restore arms a timer for every job that has a persisted next-claim
// instant.
func (s *Scheduler) restore() {
	program := s.loadProgram()
	if program == nil {
		return
	}
	restored := 0
	for _, job := range program.Jobs {
		if job.NextClaimAt == nil {
			continue
		}
		s.arm(job.Account, *job.NextClaimAt)
		restored++
	}
	s.logger.Debug("timers restored", logger.Field{Key: "count", Value: restored})
}

// ReevaluateAll cancels every armed timer and evaluates every job in turn.
// One job's failure does not stop the others.
func (s *Scheduler) ReevaluateAll(ctx context.Context) {
	s.CancelAll()
	s.logger.Info("Checking claim conditions...")

	program := s.loadProgram()
	if program == nil {
		return
	}
	for _, job := range program.Jobs {
		if ctx.Err() != nil {
			return
		}
		s.Trigger(ctx, job.Account)
	}
}

// OnPowerEvent re-evaluates every job after a suspend, resume or lock.
func (s *Scheduler) OnPowerEvent(reason string) {
	s.logger.Info("power state changed, re-evaluating jobs", logger.Field{Key: "reason", Value: reason})

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	// Add under the lock so Stop cannot reach wg.Wait in between.
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.ReevaluateAll(ctx)
	}()
}

// Trigger evaluates one job now. A trigger for a job that is already being
// evaluated waits for and returns that evaluation's outcome.
func (s *Scheduler) Trigger(ctx context.Context, account string) Outcome {
	key := jobstore.JobKey(s.cfg.Program, account)
	v, _, shared := s.flight.Do(key, func() (any, error) {
		return s.run(ctx, account), nil
	})
	if shared {
		s.logger.Debug("joined in-flight evaluation", logger.Field{Key: "job", Value: key})
	}
	return v.(Outcome)
}

// State returns the job's current state.
func (s *Scheduler) State(key string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key]
}

// NextRun returns the instant the job's timer fires.
func (s *Scheduler) NextRun(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.nextRun[key]
	return at, ok
}

// Armed returns the keys with a live timer, sorted.
func (s *Scheduler) Armed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Scheduler) setState(key string, state State) {
	s.mu.Lock()
	s.states[key] = state
	s.mu.Unlock()
}

// arm replaces the job's timer with one firing at at.
func (s *Scheduler) arm(account string, at time.Time) {
	key := jobstore.JobKey(s.cfg.Program, account)

	s.mu.Lock()
	if id, ok := s.entries[key]; ok {
		s.cron.Remove(id)
	}
	id := s.cron.Schedule(newOnceAt(at), cron.FuncJob(func() { s.fire(account) }))
	s.entries[key] = id
	s.nextRun[key] = at
	armed := len(s.entries)
	s.mu.Unlock()

	s.deps.Observer.SetArmedTimers(armed)
	s.logger.Debug("timer armed",
		logger.Field{Key: "job", Value: key},
		logger.Field{Key: "at", Value: at})
}

// cancelTimer removes the job's timer, if any.
func (s *Scheduler) cancelTimer(account string) {
	key := jobstore.JobKey(s.cfg.Program, account)

	s.mu.Lock()
	if id, ok := s.entries[key]; ok {
		s.cron.Remove(id)
		delete(s.entries, key)
		delete(s.nextRun, key)
	}
	armed := len(s.entries)
	s.mu.Unlock()

	s.deps.Observer.SetArmedTimers(armed)
}

// CancelAll removes every timer.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	for key, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, key)
		delete(s.nextRun, key)
	}
	s.mu.Unlock()

	s.deps.Observer.SetArmedTimers(0)
}

func (s *Scheduler) fire(account string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.Trigger(ctx, account)
}

// loadProgram returns the served program when the store is enabled.
func (s *Scheduler) loadProgram() *jobstore.ProgramConfig {
	cfg := s.deps.Store.LoadOrDisabled()
	if !cfg.Enabled {
		s.logger.Debug("auto-claim disabled")
		return nil
	}
	return cfg.Program(s.cfg.Program)
}

var errJobGone = errors.New("job no longer in store")

// persist applies mutate to the stored job under the store lock.
func (s *Scheduler) persist(account string, mutate func(job *jobstore.ClaimJob)) error {
	return s.deps.Store.Update(func(cfg *jobstore.AutoClaimConfig) error {
		job := cfg.Program(s.cfg.Program).Job(account)
		if job == nil {
			return errJobGone
		}
		mutate(job)
		return nil
	})
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(string, State)     {}
func (nopObserver) ObserveClaim(string, bool, string) {}
func (nopObserver) SetArmedTimers(int)                {}
