// Package failover runs one remote call against an ordered list of
// interchangeable endpoints, moving to the next endpoint only when the
// current one could not be reached.
package failover

import (
	"context"
	"net/http"
	"time"

	"github.com/aatumaykin/autoclaim/internal/logger"
)

// Policy controls how attempts are bounded and classified.
type Policy struct {
	CallTimeout        time.Duration // per-endpoint attempt timeout, 0 = none
	TimeoutIsTransient bool          // a timed-out endpoint fails over when true
}

// DefaultPolicy fails over on timeouts and bounds each attempt to 20s.
func DefaultPolicy() Policy {
	return Policy{CallTimeout: 20 * time.Second, TimeoutIsTransient: true}
}

// Outcome labels a single endpoint attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTransient Outcome = "transient"
	OutcomeFatal     Outcome = "fatal"
)

// Observer receives one callback per endpoint attempt.
type Observer interface {
	ObserveAttempt(endpoint string, outcome Outcome)
}

// Client holds the failover policy shared by every call.
type Client struct {
	policy   Policy
	logger   *logger.Logger
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithObserver reports attempts to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a Client.
func New(policy Policy, log *logger.Logger, opts ...Option) *Client {
	c := &Client{policy: policy, logger: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the client's policy.
func (c *Client) Policy() Policy {
	return c.policy
}

// Call tries op against endpoints in order and returns the first success.
//
// A transient failure advances to the next endpoint. Any other failure
// aborts and is returned unchanged. When every endpoint failed transiently
// Call reports ok=false with a nil error. Cancelling ctx stops the walk.
func Call[T any](ctx context.Context, c *Client, endpoints []string, op func(ctx context.Context, endpoint string) (T, error)) (result T, ok bool, err error) {
	var zero T

	for i, endpoint := range endpoints {
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}

		attemptCtx, cancel := c.attemptContext(ctx)
		res, opErr := op(attemptCtx, endpoint)
		cancel()

		if opErr == nil {
			c.observe(endpoint, OutcomeSuccess)
			if i > 0 {
				c.logger.Info("endpoint answered after failover",
					logger.Field{Key: "endpoint", Value: endpoint},
					logger.Field{Key: "skipped", Value: i})
			}
			return res, true, nil
		}

		if ctx.Err() != nil {
			return zero, false, ctx.Err()
		}

		if c.policy.Classify(opErr) != ClassTransient {
			c.observe(endpoint, OutcomeFatal)
			c.logger.Debug("endpoint rejected request",
				logger.Field{Key: "endpoint", Value: endpoint},
				logger.Field{Key: "error", Value: opErr})
			return zero, false, opErr
		}

		c.observe(endpoint, OutcomeTransient)
		c.logger.Warn("endpoint unreachable, trying next",
			logger.Field{Key: "endpoint", Value: endpoint},
			logger.Field{Key: "error", Value: opErr.Error()},
			logger.Field{Key: "remaining", Value: len(endpoints) - i - 1})
	}

	c.logger.Warn("all endpoints exhausted",
		logger.Field{Key: "endpoints", Value: len(endpoints)})
	return zero, false, nil
}

func (c *Client) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.policy.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.policy.CallTimeout)
}

func (c *Client) observe(endpoint string, outcome Outcome) {
	if c.observer != nil {
		c.observer.ObserveAttempt(endpoint, outcome)
	}
}

// Transport wraps an http.RoundTripper so that failures to reach the server
// surface as *TransportError. HTTP error statuses pass through untouched.
type Transport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, &TransportError{Endpoint: req.URL.Host, Err: err}
	}
	return resp, nil
}
