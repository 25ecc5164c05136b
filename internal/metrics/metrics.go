// Package metrics exports agent activity to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aatumaykin/autoclaim/internal/failover"
	"github.com/aatumaykin/autoclaim/internal/logger"
	"github.com/aatumaykin/autoclaim/internal/scheduler"
)

type PrometheusMetrics struct {
	registry       prometheus.Registerer
	rpcAttempts    *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	claims         *prometheus.CounterVec
	armedTimers    prometheus.Gauge
	lastClaimEpoch prometheus.Gauge
}

func InitPrometheusMetrics(namespace string, reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetrics{
		registry: reg,
		rpcAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_attempts_total",
				Help:      "RPC attempts by endpoint host and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_decisions_total",
				Help:      "Scheduling decisions by program and state",
			},
			[]string{"program", "state"},
		),
		claims: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claims_total",
				Help:      "Claim submissions by program, status and failure reason",
			},
			[]string{"program", "status", "reason"},
		),
		armedTimers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_armed_timers",
				Help:      "Number of armed job timers",
			},
		),
		lastClaimEpoch: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_successful_claim_timestamp_seconds",
				Help:      "Unix time of the last successful claim",
			},
		),
	}

	reg.MustRegister(
		m.rpcAttempts,
		m.decisions,
		m.claims,
		m.armedTimers,
		m.lastClaimEpoch,
	)

	return m
}

// ObserveAttempt implements failover.Observer.
func (m *PrometheusMetrics) ObserveAttempt(endpoint string, outcome failover.Outcome) {
	m.rpcAttempts.WithLabelValues(endpointHost(endpoint), string(outcome)).Inc()
}

// ObserveDecision implements scheduler.Observer.
func (m *PrometheusMetrics) ObserveDecision(program string, state scheduler.State) {
	m.decisions.WithLabelValues(program, state.String()).Inc()
}

// ObserveClaim implements scheduler.Observer.
func (m *PrometheusMetrics) ObserveClaim(program string, ok bool, reason string) {
	if ok {
		m.claims.WithLabelValues(program, "success", "").Inc()
		m.lastClaimEpoch.SetToCurrentTime()
		return
	}
	m.claims.WithLabelValues(program, "failure", reason).Inc()
}

// SetArmedTimers implements scheduler.Observer.
func (m *PrometheusMetrics) SetArmedTimers(n int) {
	m.armedTimers.Set(float64(n))
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}

// Serve exposes gatherer on listen at /metrics until ctx is done.
func Serve(ctx context.Context, listen string, gatherer prometheus.Gatherer, log *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics endpoint listening", logger.Field{Key: "addr", Value: ln.Addr().String()})
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
