// Package metrics exposes Prometheus counters for slug allocation and the
// two-factor gate. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Slug allocation outcomes.
const (
	OutcomeBase     = "base"
	OutcomeSuffixed = "suffixed"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
)

// Two-factor events.
const (
	EventIssued          = "issued"
	EventDeliveryFailed  = "delivery_failed"
	EventVerified        = "verified"
	EventInvalid         = "invalid_or_expired"
	EventNoActiveCode    = "no_active_code"
	EventThrottled       = "verify_throttled"
	EventResent          = "resent"
	EventResendThrottled = "resend_throttled"
	EventGuardLogout     = "guard_logout"
)

type Metrics struct {
	slugAllocations   *prometheus.CounterVec
	slugCommitRetries *prometheus.CounterVec
	twoFactorEvents   *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		slugAllocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Name:      "slug_allocations_total",
			Help:      "Slug allocations by record type and outcome.",
		}, []string{"type", "outcome"}),
		slugCommitRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Name:      "slug_commit_retries_total",
			Help:      "Transactions retried after a slug unique-index violation.",
		}, []string{"type"}),
		twoFactorEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Name:      "two_factor_events_total",
			Help:      "Two-factor gate events.",
		}, []string{"event"}),
	}
}

func (m *Metrics) SlugAllocated(t domain.RecordType, outcome string) {
	if m == nil {
		return
	}
	m.slugAllocations.WithLabelValues(string(t), outcome).Inc()
}

func (m *Metrics) SlugCommitRetry(t domain.RecordType) {
	if m == nil {
		return
	}
	m.slugCommitRetries.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) TwoFactor(event string) {
	if m == nil {
		return
	}
	m.twoFactorEvents.WithLabelValues(event).Inc()
}

// SlugAllocations returns the counter for tests and dashboards.
func (m *Metrics) SlugAllocations(t domain.RecordType, outcome string) prometheus.Counter {
	return m.slugAllocations.WithLabelValues(string(t), outcome)
}

func (m *Metrics) SlugCommitRetries(t domain.RecordType) prometheus.Counter {
	return m.slugCommitRetries.WithLabelValues(string(t))
}

func (m *Metrics) TwoFactorEvents(event string) prometheus.Counter {
	return m.twoFactorEvents.WithLabelValues(event)
}
