package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the profile module.
type Metrics struct {
	ProfilesCreated   *prometheus.CounterVec
	FollowChanges     *prometheus.CounterVec
	DeviceTokensAdded prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ProfilesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unitedhelp_profiles_created_total",
			Help: "Total number of profiles created, by role",
		}, []string{"role"}),
		FollowChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unitedhelp_profile_follow_changes_total",
			Help: "Follow and unfollow operations on organizer profiles",
		}, []string{"op"}),
		DeviceTokensAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unitedhelp_device_tokens_added_total",
			Help: "Push device tokens registered by users",
		}),
	}
}

func (m *Metrics) IncrementProfileCreated(role string) {
	m.ProfilesCreated.WithLabelValues(role).Inc()
}

func (m *Metrics) IncrementFollow(op string) {
	m.FollowChanges.WithLabelValues(op).Inc()
}

func (m *Metrics) IncrementDeviceToken() {
	m.DeviceTokensAdded.Inc()
}
