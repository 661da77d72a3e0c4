package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openlms/sequent/pkg/domain"
)

// Metrics holds the engine's Prometheus collectors. Wire it into a session
// through Hooks; expose it through promhttp on the embedding server.
type Metrics struct {
	navigationRequests *prometheus.CounterVec
	activityEntries    *prometheus.CounterVec
	rollupDuration     prometheus.Histogram
	sessionsEnded      prometheus.Counter
}

// NewMetrics creates and registers the engine collectors. Pass
// prometheus.DefaultRegisterer for the process-global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		navigationRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequent_navigation_requests_total",
				Help: "Total number of processed navigation requests",
			},
			[]string{"kind", "outcome"},
		),
		activityEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequent_activity_entries_total",
				Help: "Total number of activity deliveries",
			},
			[]string{"activity_id"},
		),
		rollupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sequent_rollup_duration_seconds",
				Help:    "Duration of rollup passes",
				Buckets: prometheus.DefBuckets,
			},
		),
		sessionsEnded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sequent_sessions_ended_total",
				Help: "Total number of ended sessions",
			},
		),
	}
	reg.MustRegister(m.navigationRequests, m.activityEntries, m.rollupDuration, m.sessionsEnded)
	return m
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActivityEnter: func(_ context.Context, e *domain.ActivityEvent) {
			m.activityEntries.WithLabelValues(e.ActivityID).Inc()
		},
		OnNavigation: func(_ context.Context, e *domain.NavigationEvent) {
			outcome := "denied"
			if e.Allowed {
				outcome = "allowed"
			}
			m.navigationRequests.WithLabelValues(string(e.Request), outcome).Inc()
		},
		OnRollup: func(_ context.Context, e *domain.RollupEvent) {
			m.rollupDuration.Observe(e.Duration.Seconds())
		},
		OnSessionEnd: func(_ context.Context, _ *domain.SessionEvent) {
			m.sessionsEnded.Inc()
		},
	}
}
