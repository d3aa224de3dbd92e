package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "op_arena"

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registrations        *prometheus.CounterVec
	registrationRetries  prometheus.Counter
	registrationDuration prometheus.Histogram
	bracketBuilds        *prometheus.CounterVec
	bracketMatches       prometheus.Histogram
	notifications        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration requests by outcome (admitted, rejection kind, or error).",
		}, []string{"outcome"}),
		registrationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_retries_total",
			Help:      "Registration transactions re-run after a lock or serialization conflict.",
		}),
		registrationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registration_duration_seconds",
			Help:      "End-to-end registration latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		bracketBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bracket_builds_total",
			Help:      "Bracket builds by seeding method and status.",
		}, []string{"method", "status"}),
		bracketMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bracket_matches",
			Help:      "Number of matches materialized per bracket build.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.registrations,
			m.registrationRetries,
			m.registrationDuration,
			m.bracketBuilds,
			m.bracketMatches,
			m.notifications,
		)
	}
	return m
}

func (m *Metrics) ObserveRegistration(outcome string, took time.Duration, retries int) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
	m.registrationDuration.Observe(took.Seconds())
	if retries > 0 {
		m.registrationRetries.Add(float64(retries))
	}
}

func (m *Metrics) ObserveBracketBuild(method, status string, matches int) {
	if m == nil {
		return
	}
	m.bracketBuilds.WithLabelValues(method, status).Inc()
	if matches > 0 {
		m.bracketMatches.Observe(float64(matches))
	}
}

func (m *Metrics) ObserveNotification(sink, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(sink, outcome).Inc()
}
