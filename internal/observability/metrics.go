package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracker metrics
	activeObservations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eval_console_active_observations",
		Help: "Number of result ids currently being observed",
	})

	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eval_console_polls_total",
		Help: "Total result fetches issued by the tracker",
	}, []string{"outcome"}) // outcome: "success", "error", "discarded"

	fetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eval_console_fetch_latency_seconds",
		Help:    "Latency of result fetches against the eval backend",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eval_console_status_transitions_total",
		Help: "Observed result status transitions",
	}, []string{"to"})

	// Mutation metrics
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eval_console_mutations_total",
		Help: "Total re-evaluate and delete mutations",
	}, []string{"kind", "outcome"})

	// Audio metrics
	audioResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eval_console_audio_resolutions_total",
		Help: "Audio reference resolutions by outcome",
	}, []string{"outcome"}) // outcome: "provider", "signed", "missing", "error"

	// Watch session metrics
	watchSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eval_console_watch_sessions",
		Help: "Open WebSocket watch sessions",
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eval_console_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// RecordObserve records that a result id gained its first observer
func RecordObserve() {
	activeObservations.Inc()
}

// RecordRelease records that a result id lost its last observer
func RecordRelease() {
	activeObservations.Dec()
}

// RecordPoll records one tracker fetch and its latency
func RecordPoll(outcome string, seconds float64) {
	pollsTotal.WithLabelValues(outcome).Inc()
	if outcome != "discarded" {
		fetchLatency.Observe(seconds)
	}
}

// RecordStatusTransition records a result moving to a new status
func RecordStatusTransition(to string) {
	statusTransitions.WithLabelValues(to).Inc()
}

// RecordMutation records a re-evaluate or delete mutation outcome
func RecordMutation(kind string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	mutationsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordAudioResolution records one audio reference resolution
func RecordAudioResolution(outcome string) {
	audioResolutions.WithLabelValues(outcome).Inc()
}

// RecordWatchSessionStart records a WebSocket watch session opening
func RecordWatchSessionStart() {
	watchSessions.Inc()
}

// RecordWatchSessionEnd records a WebSocket watch session closing
func RecordWatchSessionEnd() {
	watchSessions.Dec()
}

// UpdateCircuitBreakerState updates the circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
