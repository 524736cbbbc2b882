package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	VotesCast     prometheus.Counter
	VotesRejected *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		VotesCast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unitedhelp_votes_cast_total",
			Help: "Votes accepted for organizer profiles",
		}),
		VotesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unitedhelp_votes_rejected_total",
			Help: "Votes rejected, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncrementCast() {
	m.VotesCast.Inc()
}

func (m *Metrics) IncrementRejected(reason string) {
	m.VotesRejected.WithLabelValues(reason).Inc()
}
