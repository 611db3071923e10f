package orchestration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded by [Metrics].
const (
	outcomeSuccess   = "success"
	outcomeTransport = "transport_error"
	outcomeStatus    = "status_error"
	outcomeMalformed = "malformed"
)

// Metrics records orchestration call counts and latencies.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// Pass nil to create unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmcopilot_orchestration_requests_total",
				Help: "Total number of orchestration calls by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pmcopilot_orchestration_request_duration_seconds",
				Help:    "Duration of orchestration calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

func (m *Metrics) observe(endpoint Endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(endpoint), outcome).Inc()
	m.duration.WithLabelValues(string(endpoint)).Observe(elapsed.Seconds())
}
