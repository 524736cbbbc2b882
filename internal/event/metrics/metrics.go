package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the event lifecycle.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	AdmissionDenied    *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
	SweepEvents        *prometheus.CounterVec
	GeocodeFailures    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unitedhelp_event_transitions_total",
			Help: "Lifecycle operations by action and outcome",
		}, []string{"action", "outcome"}),
		AdmissionDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unitedhelp_event_admission_denied_total",
			Help: "Lifecycle operations rejected by admission",
		}, []string{"action"}),
		TransitionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unitedhelp_event_transition_duration_seconds",
			Help:    "Time spent in the per-event transaction",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		SweepEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unitedhelp_event_sweep_events_total",
			Help: "Events processed by scheduled sweeps",
		}, []string{"sweep"}),
		GeocodeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unitedhelp_event_geocode_failures_total",
			Help: "Location lookups that failed and were left for the next read",
		}),
	}
}

func (m *Metrics) IncrementTransition(action, outcome string) {
	m.Transitions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncrementAdmissionDenied(action string) {
	m.AdmissionDenied.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveTransitionDuration(action string, seconds float64) {
	m.TransitionDuration.WithLabelValues(action).Observe(seconds)
}

func (m *Metrics) AddSweepEvents(sweep string, n int) {
	m.SweepEvents.WithLabelValues(sweep).Add(float64(n))
}

func (m *Metrics) IncrementGeocodeFailure() {
	m.GeocodeFailures.Inc()
}
