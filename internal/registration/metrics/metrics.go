package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Existence and recovery results.
const (
	ResultFound    = "found"
	ResultNotFound = "not_found"
	ResultCacheHit = "cache_hit"
	ResultError    = "error"
)

// Metrics holds the Prometheus collectors for the registration workflows.
// Every method is safe on a nil receiver.
type Metrics struct {
	Registrations        *prometheus.CounterVec
	ExistenceChecks      *prometheus.CounterVec
	Recoveries           *prometheus.CounterVec
	NotificationFailures prometheus.Counter
	NotificationDuration prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nftform_registrations_total",
			Help: "Registration attempts that passed validation, by outcome",
		}, []string{"outcome"}),
		ExistenceChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nftform_existence_checks_total",
			Help: "Existence checks, by result",
		}, []string{"result"}),
		Recoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nftform_recoveries_total",
			Help: "Recovery attempts, by result",
		}, []string{"result"}),
		NotificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "nftform_notification_failures_total",
			Help: "Access code emails that could not be sent",
		}),
		NotificationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nftform_notification_duration_seconds",
			Help:    "Time spent sending the access code email",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) IncRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncExistenceCheck(result string) {
	if m == nil {
		return
	}
	m.ExistenceChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRecovery(result string) {
	if m == nil {
		return
	}
	m.Recoveries.WithLabelValues(result).Inc()
}

func (m *Metrics) IncNotificationFailure() {
	if m == nil {
		return
	}
	m.NotificationFailures.Inc()
}

func (m *Metrics) ObserveNotification(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.NotificationDuration.Observe(elapsed.Seconds())
}
