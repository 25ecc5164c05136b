package failover

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/autoclaim/internal/logger"
)

type rejection struct{ msg string }

func (r rejection) Error() string   { return r.msg }
func (r rejection) Permanent() bool { return true }

type recordingObserver struct {
	attempts []Outcome
}

func (o *recordingObserver) ObserveAttempt(_ string, outcome Outcome) {
	o.attempts = append(o.attempts, outcome)
}

func newTestClient(policy Policy, opts ...Option) *Client {
	return New(policy, logger.Nop(), opts...)
}

var endpoints = []string{"https://a.example", "https://b.example", "https://c.example"}

func TestCall_FirstEndpointSucceeds(t *testing.T) {
	c := newTestClient(DefaultPolicy())
	var tried []string

	got, ok, err := Call(context.Background(), c, endpoints, func(_ context.Context, ep string) (string, error) {
		tried = append(tried, ep)
		return "row", nil
	})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "row", got)
	assert.Equal(t, endpoints[:1], tried)
}

func TestCall_AdvancesOnlyPastTransportFailures(t *testing.T) {
	for k := 0; k < len(endpoints); k++ {
		t.Run(fmt.Sprintf("first %d down", k), func(t *testing.T) {
			obs := &recordingObserver{}
			c := newTestClient(DefaultPolicy(), WithObserver(obs))
			var tried []string

			got, ok, err := Call(context.Background(), c, endpoints, func(_ context.Context, ep string) (int, error) {
				tried = append(tried, ep)
				if len(tried) <= k {
					return 0, &TransportError{Endpoint: ep, Err: syscall.ECONNREFUSED}
				}
				return 7, nil
			})

			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 7, got)
			assert.Equal(t, endpoints[:k+1], tried)

			want := make([]Outcome, 0, k+1)
			for i := 0; i < k; i++ {
				want = append(want, OutcomeTransient)
			}
			want = append(want, OutcomeSuccess)
			assert.Equal(t, want, obs.attempts)
		})
	}
}

func TestCall_ApplicationErrorStopsImmediately(t *testing.T) {
	c := newTestClient(DefaultPolicy())
	calls := 0
	reject := rejection{msg: "missing required authority: connection refused"}

	_, ok, err := Call(context.Background(), c, endpoints, func(_ context.Context, _ string) (struct{}, error) {
		calls++
		return struct{}{}, reject
	})

	assert.False(t, ok)
	assert.Equal(t, reject, err)
	assert.Equal(t, 1, calls)
}

func TestCall_AllEndpointsDown(t *testing.T) {
	c := newTestClient(DefaultPolicy())
	calls := 0

	got, ok, err := Call(context.Background(), c, endpoints, func(_ context.Context, ep string) (*int, error) {
		calls++
		return nil, &TransportError{Endpoint: ep, Err: errors.New("dial tcp: no such host")}
	})

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, len(endpoints), calls)
}

func TestCall_EmptyEndpointList(t *testing.T) {
	c := newTestClient(DefaultPolicy())

	_, ok, err := Call(context.Background(), c, nil, func(_ context.Context, _ string) (int, error) {
		t.Fatal("op must not run")
		return 0, nil
	})

	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCall_ParentCancellation(t *testing.T) {
	c := newTestClient(DefaultPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, ok, err := Call(ctx, c, endpoints, func(_ context.Context, _ string) (int, error) {
		calls++
		cancel()
		return 0, &TransportError{Err: errors.New("connection reset")}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestCall_TimeoutPolicy(t *testing.T) {
	slow := func(ctx context.Context, ep string) (string, error) {
		if ep == endpoints[0] {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "fast", nil
	}

	t.Run("transient", func(t *testing.T) {
		c := newTestClient(Policy{CallTimeout: 10 * time.Millisecond, TimeoutIsTransient: true})
		got, ok, err := Call(context.Background(), c, endpoints, slow)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "fast", got)
	})

	t.Run("fatal", func(t *testing.T) {
		c := newTestClient(Policy{CallTimeout: 10 * time.Millisecond, TimeoutIsTransient: false})
		_, ok, err := Call(context.Background(), c, endpoints, slow)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, ok)
	})
}

func TestClassify(t *testing.T) {
	lenient := Policy{TimeoutIsTransient: true}
	strict := Policy{TimeoutIsTransient: false}

	tests := []struct {
		name   string
		policy Policy
		err    error
		want   Class
	}{
		{"nil", lenient, nil, ClassFatal},
		{"canceled", lenient, context.Canceled, ClassFatal},
		{"transport wrapper", lenient, &TransportError{Err: errors.New("boom")}, ClassTransient},
		{"wrapped transport", lenient, fmt.Errorf("get table: %w", &TransportError{Err: errors.New("boom")}), ClassTransient},
		{"net op error", lenient, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ClassTransient},
		{"dns", lenient, &net.DNSError{Err: "no such host", Name: "x"}, ClassTransient},
		{"errno", lenient, fmt.Errorf("read: %w", syscall.ECONNRESET), ClassTransient},
		{"message fallback", lenient, errors.New("Post \"https://x\": Service Unavailable"), ClassTransient},
		{"permanent beats message", lenient, rejection{msg: "connection refused"}, ClassFatal},
		{"deadline lenient", lenient, context.DeadlineExceeded, ClassTransient},
		{"deadline strict", strict, context.DeadlineExceeded, ClassFatal},
		{"timeout text strict", strict, errors.New("read tcp: i/o timeout"), ClassFatal},
		{"plain error", lenient, errors.New("assertion failure"), ClassFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Classify(tt.err))
		})
	}
}

func TestTransport_WrapsDialFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	addr := srv.URL
	client := &http.Client{Transport: &Transport{}}

	resp, err := client.Get(addr)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	srv.Close()
	_, err = client.Get(addr)
	require.Error(t, err)
	var te *TransportError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, ClassTransient, DefaultPolicy().Classify(err))
}
