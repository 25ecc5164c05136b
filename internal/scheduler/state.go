package scheduler

import (
	"sync/atomic"
	"time"
)

// State is the position of one job in its evaluate/claim cycle.
type State int

const (
	StateIdle State = iota
	StateEvaluating
	StateClaimDue
	StateClaiming
	StateSucceeded
	StateFailed
	StateNotDue
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateEvaluating: "evaluating",
	StateClaimDue:   "claim_due",
	StateClaiming:   "claiming",
	StateSucceeded:  "succeeded",
	StateFailed:     "failed",
	StateNotDue:     "not_due",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Outcome is the result of one evaluation pass of a job.
type Outcome struct {
	// State is the decision reached: Succeeded, Failed, NotDue, or Idle when
	// the job was skipped or its chain state could not be read.
	State   State
	NextRun time.Time
	TxID    string
	Err     error
}

// onceAt is a cron.Schedule that fires a single time at a fixed instant.
// cron asks for the next activation once when the entry is added and once
// after every run, so the second answer retires the entry.
type onceAt struct {
	at    time.Time
	calls atomic.Int32
}

func newOnceAt(at time.Time) *onceAt {
	return &onceAt{at: at}
}

func (o *onceAt) Next(time.Time) time.Time {
	if o.calls.Add(1) == 1 {
		return o.at
	}
	return time.Time{}
}
