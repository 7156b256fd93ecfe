package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Job workflow metrics
	JobsCreated    *prometheus.CounterVec
	JobTransitions *prometheus.CounterVec
	JobsDeleted    prometheus.Counter
	PriceResolved  *prometheus.CounterVec

	// Partnership and catalog metrics
	InviteRedemptions *prometheus.CounterVec
	CatalogImported   prometheus.Counter

	// Notification metrics
	NotificationsRecorded prometheus.Counter
	PushFailures          prometheus.Counter

	// Storage metrics
	StorageCleanupFailures prometheus.Counter

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisLatency    *prometheus.HistogramVec
}

// NewMetrics creates and registers all application metrics on reg. A nil
// registerer gets a private registry so repeated construction never collides.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		JobsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_created_total",
			Help:      "Total number of jobs created, by creating account kind",
		}, []string{"actor"}),
		JobTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Total number of job status transitions",
		}, []string{"from", "to"}),
		JobsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_deleted_total",
			Help:      "Total number of deleted jobs",
		}),
		PriceResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_resolutions_total",
			Help:      "Job price resolutions by winning source",
		}, []string{"source"}),

		InviteRedemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invite_redemptions_total",
			Help:      "Invite redemption attempts by result",
		}, []string{"result"}),
		CatalogImported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_items_imported_total",
			Help:      "Price table items created by catalog import",
		}),

		NotificationsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_recorded_total",
			Help:      "Total number of persisted notifications",
		}),
		PushFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "Real-time pushes that failed and were dropped",
		}),

		StorageCleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_cleanup_failures_total",
			Help:      "Attachment blobs that could not be released",
		}),

		RedisOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
		RedisLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redis_operation_duration_seconds",
			Help:      "Duration of Redis operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"operation"}),
	}
}
