package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/autoclaim/internal/artifacts"
	"github.com/aatumaykin/autoclaim/internal/claim"
	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/jobstore"
	"github.com/aatumaykin/autoclaim/internal/logger"
)

// run is one pass of the job state machine. Callers go through Trigger so
// that a job is never evaluated twice at once.
func (s *Scheduler) run(ctx context.Context, account string) Outcome {
	key := jobstore.JobKey(s.cfg.Program, account)
	log := s.logger.With(logger.Field{Key: "account", Value: account})

	program := s.loadProgram()
	job := program.Job(account)
	if job == nil {
		s.cancelTimer(account)
		s.setState(key, StateIdle)
		return Outcome{State: StateIdle}
	}
	job = job.Clone()
	endpoints := append([]string(nil), program.Endpoints...)

	s.setState(key, StateEvaluating)
	last, found, ok, err := s.deps.Evaluator.GetClaimTime(ctx, endpoints, account)
	now := s.now()

	if ctx.Err() != nil {
		s.setState(key, StateIdle)
		return Outcome{State: StateIdle, Err: ctx.Err()}
	}

	if err != nil || !ok {
		// job unchanged; look again shortly
		next := now.Add(s.cfg.RetryDelay)
		if err != nil {
			log.Error("claim time lookup failed", err, logger.Field{Key: "retry_at", Value: next})
		} else {
			log.Warn("no endpoint answered claim time lookup", logger.Field{Key: "retry_at", Value: next})
		}
		s.arm(account, next)
		s.setState(key, StateIdle)
		s.deps.Observer.ObserveDecision(s.cfg.Program, StateIdle)
		return Outcome{State: StateIdle, NextRun: next, Err: err}
	}

	if !found {
		next := now.Add(s.cfg.ClaimWindow)
		log.Info(account+" has no claim record, checking again later", logger.Field{Key: "at", Value: next})
		return s.notDue(key, account, next, log)
	}

	if !claim.IsDue(last, now, s.cfg.ClaimWindow) {
		next := claim.NextEligible(last, s.cfg.ClaimWindow)
		log.Info(account + " claims again at " + next.UTC().Format(time.RFC3339))
		return s.notDue(key, account, next, log)
	}

	log.Info(account + " is ready to claim!")
	s.setState(key, StateClaimDue)
	s.deps.Observer.ObserveDecision(s.cfg.Program, StateClaimDue)
	return s.claim(ctx, key, job, endpoints, log)
}

func (s *Scheduler) notDue(key, account string, next time.Time, log *logger.Logger) Outcome {
	s.setState(key, StateNotDue)
	s.deps.Observer.ObserveDecision(s.cfg.Program, StateNotDue)

	err := s.persist(account, func(job *jobstore.ClaimJob) {
		at := next
		job.NextClaimAt = &at
	})
	if errors.Is(err, errJobGone) {
		s.cancelTimer(account)
		s.setState(key, StateIdle)
		return Outcome{State: StateIdle}
	}
	if err != nil {
		log.Error("failed to persist next claim time", err)
	}

	s.arm(account, next)
	s.setState(key, StateIdle)
	return Outcome{State: StateNotDue, NextRun: next}
}

func (s *Scheduler) claim(ctx context.Context, key string, job *jobstore.ClaimJob, endpoints []string, log *logger.Logger) Outcome {
	attemptID := uuid.NewString()
	log = log.With(logger.Field{Key: "attempt", Value: attemptID})
	s.setState(key, StateClaiming)

	var txID string
	secret, err := s.deps.Secrets.GetSecret(s.deps.CredentialService, job.PublicKey)
	if err != nil {
		err = &claim.CredentialError{KeyID: job.PublicKey, Err: err}
	} else {
		txID, err = s.deps.Executor.Claim(ctx, claim.Request{
			AttemptID:  attemptID,
			Endpoints:  endpoints,
			Account:    job.Account,
			PrivateKey: secret,
			Permission: job.Permission,
		})
	}

	if err != nil && errors.Is(err, context.Canceled) {
		s.setState(key, StateIdle)
		return Outcome{State: StateIdle, Err: err}
	}

	now := s.now()
	if err != nil {
		return s.failed(ctx, key, job, attemptID, now, err, log)
	}

	s.setState(key, StateSucceeded)
	s.deps.Observer.ObserveDecision(s.cfg.Program, StateSucceeded)
	s.deps.Observer.ObserveClaim(s.cfg.Program, true, "")

	next := now.Add(s.cfg.ClaimWindow)
	perr := s.persist(job.Account, func(j *jobstore.ClaimJob) {
		claimed, at := now, next
		j.LastClaimAt = &claimed
		j.NextClaimAt = &at
	})
	switch {
	case errors.Is(perr, errJobGone):
		s.cancelTimer(job.Account)
		s.setState(key, StateIdle)
		return Outcome{State: StateSucceeded, TxID: txID}
	case perr != nil:
		log.Error("failed to persist claim", perr)
	}

	log.Info(job.Account+" claimed",
		logger.Field{Key: "tx", Value: txID},
		logger.Field{Key: "next", Value: next})
	s.arm(job.Account, next)
	s.setState(key, StateIdle)
	return Outcome{State: StateSucceeded, NextRun: next, TxID: txID}
}

func (s *Scheduler) failed(ctx context.Context, key string, job *jobstore.ClaimJob, attemptID string, now time.Time, err error, log *logger.Logger) Outcome {
	s.setState(key, StateFailed)
	s.deps.Observer.ObserveDecision(s.cfg.Program, StateFailed)

	claimErr := claim.Classify(err)
	s.deps.Observer.ObserveClaim(s.cfg.Program, false, claimErr.Reason.String())
	if claimErr.Reason == claim.ReasonMissingKey {
		// the executor never ran, so nobody has told the user yet
		s.deps.Notifier.Notify(ctx, constants.MsgClaimErrorTitle,
			fmt.Sprintf(constants.MsgClaimErrorBody, job.Account, claimErr.Error()))
	}

	if s.deps.Diagnostics != nil {
		path, derr := s.deps.Diagnostics.WriteDiagnostic(artifacts.Diagnostic{
			AttemptID: attemptID,
			Program:   s.cfg.Program,
			Account:   job.Account,
			Stage:     "claim",
			Reason:    claimErr.Error(),
			Err:       err,
			At:        now,
		})
		if derr != nil {
			log.Error("failed to write diagnostic", derr)
		} else {
			log.Info("Autoclaim error, check log file: " + path)
		}
	}

	next := now.Add(s.cfg.RetryDelay)
	perr := s.persist(job.Account, func(j *jobstore.ClaimJob) {
		at := next
		j.NextClaimAt = &at
	})
	switch {
	case errors.Is(perr, errJobGone):
		s.cancelTimer(job.Account)
		s.setState(key, StateIdle)
		return Outcome{State: StateFailed, Err: claimErr}
	case perr != nil:
		log.Error("failed to persist retry time", perr)
	}

	s.arm(job.Account, next)
	s.setState(key, StateIdle)
	return Outcome{State: StateFailed, NextRun: next, Err: claimErr}
}
