// Package metrics holds the prometheus collectors for authentication
// outcomes. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "directory"

// Authentication methods.
const (
	MethodPassword  = "password"
	MethodRegister  = "register"
	MethodFederated = "federated"
)

// Attempt outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	authAttempts        *prometheus.CounterVec
	sessionsEstablished prometheus.Counter
	sessionsDestroyed   prometheus.Counter
	federatedCreated    prometheus.Counter
	expiredSessions     prometheus.Counter
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		authAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by method and outcome.",
		}, []string{"method", "outcome"}),

		sessionsEstablished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_established_total",
			Help:      "Sessions created after successful authentication.",
		}),

		sessionsDestroyed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_destroyed_total",
			Help:      "Sessions ended by logout.",
		}),

		federatedCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "federated_identities_created_total",
			Help:      "Identities created on a first federated sign-in.",
		}),

		expiredSessions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_deleted_total",
			Help:      "Expired sessions removed by housekeeping.",
		}),
	}
}

func (m *Metrics) AuthAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) SessionEstablished() {
	if m == nil {
		return
	}
	m.sessionsEstablished.Inc()
}

func (m *Metrics) SessionDestroyed() {
	if m == nil {
		return
	}
	m.sessionsDestroyed.Inc()
}

func (m *Metrics) FederatedIdentityCreated() {
	if m == nil {
		return
	}
	m.federatedCreated.Inc()
}

func (m *Metrics) ExpiredSessionsDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.expiredSessions.Add(float64(n))
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
