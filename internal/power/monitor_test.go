package power

import (
	"context"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/autoclaim/internal/logger"
)

type events struct {
	mu  sync.Mutex
	got []string
}

func (e *events) handle(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, reason)
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.got...)
}

func TestObserve(t *testing.T) {
	m := New(30*time.Second, time.Minute, nil, logger.Nop())
	base := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

	_, gap := m.observe(base, base)
	assert.False(t, gap, "first sample has nothing to compare")

	_, gap = m.observe(base.Add(30*time.Second), base.Add(30*time.Second))
	assert.False(t, gap)

	// machine slept for two hours: wall moved, monotonic did not
	drift, gap := m.observe(base.Add(2*time.Hour+time.Minute), base.Add(time.Minute))
	assert.True(t, gap)
	assert.Equal(t, 2*time.Hour, drift)

	// wall clock stepped back by an NTP correction larger than the threshold
	_, gap = m.observe(base.Add(time.Hour), base.Add(90*time.Second))
	assert.True(t, gap)
}

func TestRun_ManualAndSignal(t *testing.T) {
	ev := &events{}
	m := New(time.Hour, 0, ev.handle, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	m.Notify(ReasonManual)
	require.Eventually(t, func() bool { return len(ev.list()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	require.Eventually(t, func() bool { return len(ev.list()) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGHUP))
	require.Eventually(t, func() bool { return len(ev.list()) == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, []string{ReasonManual, ReasonSignal, ReasonManual}, ev.list())
}

func TestNotify_Coalesces(t *testing.T) {
	m := New(time.Hour, 0, nil, logger.Nop())
	m.Notify("a")
	m.Notify("b")
	assert.Len(t, m.events, 1)
}
