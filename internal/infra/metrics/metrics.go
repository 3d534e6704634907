// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Verification outcome label values.
const (
	OutcomeValid    = "valid"
	OutcomeInvalid  = "invalid"
	OutcomeRevoked  = "revoked"
	OutcomeNotFound = "not_found"
)

type Metrics struct {
	Signatures      prometheus.Counter
	Verifications   *prometheus.CounterVec
	TamperEvents    prometheus.Counter
	RequestsExpired prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Signatures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signet_signatures_total",
			Help: "Number of signatures applied",
		}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signet_verifications_total",
			Help: "Number of certificate verifications by outcome",
		}, []string{"outcome"}),
		TamperEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signet_tamper_events_total",
			Help: "Number of hash mismatches detected at signing time",
		}),
		RequestsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signet_requests_expired_total",
			Help: "Number of signature requests expired by the sweeper",
		}),
	}
}

func (m *Metrics) Register(registerer prometheus.Registerer) error {
	return errors.Join(
		registerer.Register(m.Signatures),
		registerer.Register(m.Verifications),
		registerer.Register(m.TamperEvents),
		registerer.Register(m.RequestsExpired),
	)
}

func (m *Metrics) MustRegister(registerer prometheus.Registerer) {
	if err := m.Register(registerer); err != nil {
		panic(err)
	}
}

// The Record helpers tolerate a nil receiver so callers can run without
// instrumentation wired.

func (m *Metrics) RecordSignature() {
	if m == nil {
		return
	}
	m.Signatures.Inc()
}

func (m *Metrics) RecordVerification(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordTamper() {
	if m == nil {
		return
	}
	m.TamperEvents.Inc()
}

func (m *Metrics) RecordExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RequestsExpired.Add(float64(n))
}
