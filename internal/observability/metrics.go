package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the call pipeline: webhook events in, calls placed and
// ended, greetings fired, agent failures, and recognition ladder falls.
type Metrics struct {
	// WebhookEvents counts parsed webhook events.
	// Labels: kind (call_connected|play_completed|...)
	WebhookEvents *prometheus.CounterVec

	// CallsPlaced counts outbound calls handed to the telephony provider.
	CallsPlaced prometheus.Counter

	// CallsEnded counts finished calls by end reason.
	// Labels: reason (completed|hung_up|expired|failed)
	CallsEnded *prometheus.CounterVec

	// GreetingsPlayed counts greetings started once a session became ready.
	GreetingsPlayed prometheus.Counter

	// AgentFailures counts agent errors by classified kind.
	// Labels: kind (rate_limited|auth_failed|timeout|api_error)
	AgentFailures *prometheus.CounterVec

	// RecognitionAttempts counts speech recognition starts by ladder rung.
	// Labels: rung (targeted|generic|simplified)
	RecognitionAttempts *prometheus.CounterVec

	// ActiveSessions is a gauge of live call sessions.
	ActiveSessions prometheus.Gauge

	// CallDuration measures call lifetime in seconds.
	// Buckets: 15s, 30s, 60s, 120s, 300s, 600s, 1800s
	CallDuration prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics with the default
// registry. Call once at startup.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers against a caller-supplied registry.
// Tests use this to avoid duplicate registration panics.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_webhook_events_total",
				Help: "Total webhook events processed by kind",
			},
			[]string{"kind"},
		),
		CallsPlaced: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "callflow_calls_placed_total",
				Help: "Total outbound calls placed",
			},
		),
		CallsEnded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_calls_ended_total",
				Help: "Total calls ended by reason",
			},
			[]string{"reason"},
		),
		GreetingsPlayed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "callflow_greetings_played_total",
				Help: "Total greetings started after session readiness",
			},
		),
		AgentFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_agent_failures_total",
				Help: "Total agent errors by classified kind",
			},
			[]string{"kind"},
		),
		RecognitionAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_recognition_attempts_total",
				Help: "Total speech recognition starts by ladder rung",
			},
			[]string{"rung"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "callflow_active_sessions",
				Help: "Current number of live call sessions",
			},
		),
		CallDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "callflow_call_duration_seconds",
				Help:    "Call lifetime in seconds",
				Buckets: []float64{15, 30, 60, 120, 300, 600, 1800},
			},
		),
	}
}

// EventProcessed increments the webhook event counter.
func (m *Metrics) EventProcessed(kind string) {
	m.WebhookEvents.WithLabelValues(kind).Inc()
}

// CallEnded records a finished call.
func (m *Metrics) CallEnded(reason string, durationSeconds float64) {
	m.CallsEnded.WithLabelValues(reason).Inc()
	m.ActiveSessions.Dec()
	if durationSeconds > 0 {
		m.CallDuration.Observe(durationSeconds)
	}
}

// CallStarted records a new live session.
func (m *Metrics) CallStarted() {
	m.CallsPlaced.Inc()
	m.ActiveSessions.Inc()
}

// AgentFailure records a classified agent error.
func (m *Metrics) AgentFailure(kind string) {
	m.AgentFailures.WithLabelValues(kind).Inc()
}

// RecognitionAttempt records a recognition start at the given ladder rung.
func (m *Metrics) RecognitionAttempt(rung string) {
	m.RecognitionAttempts.WithLabelValues(rung).Inc()
}
