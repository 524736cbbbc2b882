package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TokensDelivered *prometheus.CounterVec
	TokensFailed    *prometheus.CounterVec
	BatchesFailed   *prometheus.CounterVec
	BatchDuration   prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		TokensDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unitedhelp_push_tokens_delivered_total",
			Help: "Device tokens accepted by the push gateway",
		}, []string{"notify_type"}),
		TokensFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unitedhelp_push_tokens_failed_total",
			Help: "Device tokens in batches the push gateway rejected or timed out",
		}, []string{"notify_type"}),
		BatchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unitedhelp_push_batches_failed_total",
			Help: "Push gateway batches that failed",
		}, []string{"notify_type"}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "unitedhelp_push_batch_duration_seconds",
			Help:    "Latency of one push gateway batch call",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) ObserveResult(notifyType string, success, failure, failedBatches int) {
	m.TokensDelivered.WithLabelValues(notifyType).Add(float64(success))
	m.TokensFailed.WithLabelValues(notifyType).Add(float64(failure))
	m.BatchesFailed.WithLabelValues(notifyType).Add(float64(failedBatches))
}

func (m *Metrics) ObserveBatchDuration(seconds float64) {
	m.BatchDuration.Observe(seconds)
}
