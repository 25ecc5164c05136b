package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aatumaykin/autoclaim/internal/artifacts"
	"github.com/aatumaykin/autoclaim/internal/chain"
	"github.com/aatumaykin/autoclaim/internal/claim"
	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/credentials"
	"github.com/aatumaykin/autoclaim/internal/failover"
	"github.com/aatumaykin/autoclaim/internal/jobstore"
	"github.com/aatumaykin/autoclaim/internal/logger"
	"github.com/aatumaykin/autoclaim/internal/metrics"
	"github.com/aatumaykin/autoclaim/internal/notify"
	"github.com/aatumaykin/autoclaim/internal/power"
	"github.com/aatumaykin/autoclaim/internal/scheduler"
)

// Initialize builds the agent components. Nothing runs until Start.
func (a *App) Initialize(ctx context.Context) error {
	// 1. Application context
	a.ctx, a.cancel = context.WithCancel(ctx)

	// 2. Metrics
	a.registry = prometheus.NewRegistry()
	m := metrics.InitPrometheusMetrics(a.config.Metrics.Namespace, a.registry)

	// 3. Failover client and node dialer
	client := failover.New(failover.Policy{
		CallTimeout:        a.config.CallTimeout(),
		TimeoutIsTransient: a.config.TimeoutTransient(),
	}, a.logger, failover.WithObserver(m))

	dial := a.dial
	if dial == nil {
		dial = chain.NewEOSDialer(&http.Client{})
	}

	// 4. Notification sinks
	sinks := notify.Multi{notify.NewLog(a.logger)}
	if tg := a.config.Notify.Telegram; tg.Enabled {
		t, err := notify.NewTelegram(tg.Token, tg.ChatID, time.Duration(tg.SendTimeoutSeconds)*time.Second, a.logger)
		if err != nil {
			a.logger.Error("telegram notifications disabled", err)
		} else {
			a.telegram = t
			sinks = append(sinks, t)
		}
	}
	if a.notifier != nil {
		sinks = append(sinks, a.notifier)
	}

	// 5. Claim pipeline
	writer := artifacts.NewWriter(a.config.Workspace.Path, a.logger)
	evaluator := claim.NewEvaluator(client, dial)
	executor := claim.NewExecutor(client, dial, claim.ExecutorConfig{
		Program:      a.config.Agent.Program,
		BlocksBehind: uint32(a.config.Chain.BlocksBehind),
		Expiration:   time.Duration(a.config.Chain.ExpireSeconds) * time.Second,
		ExplorerURL:  a.config.Chain.ExplorerURL,
	}, writer, sinks, a.logger)

	// 6. Credentials
	if a.config.Credentials.Passphrase == "" {
		a.logger.Warn("credentials.passphrase is empty; every claim will fail with a missing key")
	}
	keys := credentials.NewStore(a.config.CredentialsDir(), a.config.Credentials.Passphrase)

	// 7. Scheduler
	if a.store == nil {
		a.store = jobstore.New(a.config.JobStorePath(), a.logger)
	}
	sched := scheduler.New(scheduler.Config{
		Program:     a.config.Agent.Program,
		ClaimWindow: constants.ClaimWindow,
		RetryDelay:  constants.RetryDelay,
	}, scheduler.Deps{
		Store:             a.store,
		Evaluator:         evaluator,
		Executor:          executor,
		Secrets:           keys,
		CredentialService: a.config.Credentials.Service,
		Diagnostics:       writer,
		Notifier:          sinks,
		Observer:          m,
		Logger:            a.logger,
		Now:               a.now,
	})

	// 8. Power monitor
	a.monitor = power.New(
		time.Duration(a.config.Power.CheckIntervalSeconds)*time.Second,
		time.Duration(a.config.Power.DriftThresholdSeconds)*time.Second,
		sched.OnPowerEvent,
		a.logger,
	)

	a.mu.Lock()
	a.scheduler = sched
	a.mu.Unlock()
	return nil
}

// Start starts the scheduler, the power monitor and, when enabled, the
// metrics endpoint.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scheduler == nil {
		return fmt.Errorf("app is not initialized")
	}
	if a.started {
		return nil
	}

	if err := a.scheduler.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.monitor.Run(a.ctx)
	}()

	if a.config.Metrics.Enabled {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := metrics.Serve(a.ctx, a.config.Metrics.Listen, a.registry, a.logger); err != nil {
				a.logger.Error("metrics endpoint stopped", err, logger.Field{Key: "listen", Value: a.config.Metrics.Listen})
			}
		}()
	}

	a.started = true
	return nil
}
