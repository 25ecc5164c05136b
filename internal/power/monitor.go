// Package power detects system suspend/resume and screen-lock transitions
// and reports them as events.
//
// Resume is detected by comparing wall-clock and monotonic elapsed time
// between samples: the monotonic clock stops while the machine sleeps, the
// wall clock does not. Lock-screen and other session transitions are
// delivered by a session hook sending SIGUSR1 to the agent. SIGHUP asks for
// an immediate re-evaluation.
package power

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aatumaykin/autoclaim/internal/logger"
)

// Event reasons.
const (
	ReasonResume = "resume"
	ReasonSignal = "signal"
	ReasonManual = "manual"
)

// Handler receives power events.
type Handler func(reason string)

// Monitor samples the clocks periodically and forwards events to a handler.
type Monitor struct {
	interval  time.Duration
	threshold time.Duration
	handler   Handler
	logger    *logger.Logger
	events    chan string

	prevWall time.Time
	prevMono time.Time
}

// New creates a Monitor. A wall/monotonic drift above threshold between two
// samples counts as a resume.
func New(interval, threshold time.Duration, handler Handler, log *logger.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if threshold <= 0 {
		threshold = 2 * interval
	}
	return &Monitor{
		interval:  interval,
		threshold: threshold,
		handler:   handler,
		logger:    log,
		events:    make(chan string, 1),
	}
}

// Notify queues an event. Events arriving while one is pending coalesce.
func (m *Monitor) Notify(reason string) {
	select {
	case m.events <- reason:
	default:
	}
}

// Run samples until ctx is done. SIGUSR1 is translated into a ReasonSignal
// event and SIGHUP into a ReasonManual one.
func (m *Monitor) Run(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	now := time.Now()
	m.observe(now.Round(0), now)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				m.emit(ReasonManual)
			} else {
				m.emit(ReasonSignal)
			}
		case reason := <-m.events:
			m.emit(reason)
		case <-ticker.C:
			now := time.Now()
			if drift, gap := m.observe(now.Round(0), now); gap {
				m.logger.Info("clock gap detected, assuming resume from sleep",
					logger.Field{Key: "drift", Value: drift.String()})
				m.emit(ReasonResume)
			}
		}
	}
}

// observe records a sample. wall must carry no monotonic reading; mono must.
// It returns how far the wall clock ran ahead of the monotonic clock since
// the previous sample and whether that exceeds the threshold.
func (m *Monitor) observe(wall, mono time.Time) (time.Duration, bool) {
	defer func() { m.prevWall, m.prevMono = wall, mono }()
	if m.prevWall.IsZero() {
		return 0, false
	}
	drift := wall.Sub(m.prevWall) - mono.Sub(m.prevMono)
	if drift < 0 {
		drift = -drift
	}
	return drift, drift > m.threshold
}

func (m *Monitor) emit(reason string) {
	if m.handler != nil {
		m.handler(reason)
	}
}
