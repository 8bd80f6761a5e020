// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AccountSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apool_account_selections_total",
		Help: "Accounts handed out, labeled by pool and outcome",
	}, []string{"pool", "outcome"})

	Rotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apool_rotations_total",
		Help: "Rotation attempts, labeled by pool and result",
	}, []string{"pool", "result"})

	PoolExhaustions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apool_pool_exhaustions_total",
		Help: "Terminal no-accounts-available failures",
	}, []string{"pool"})

	HealthStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apool_health_store_errors_total",
		Help: "Health store failures that fell back to optimistic defaults",
	}, []string{"operation"})

	JobQueueRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apool_job_queue_quota_rejections_total",
		Help: "Job submissions rejected because the user was at quota",
	})

	JobCancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apool_job_cancellations_total",
		Help: "Cancellation messages received, labeled by whether this process owned the job",
	}, []string{"owner"})

	EventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apool_events_delivered_total",
		Help: "Broadcast events pushed into a local stream",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apool_events_dropped_total",
		Help: "Events dropped because a listener buffer was full",
	})

	EventsRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apool_events_relayed_total",
		Help: "Events the coordinator re-broadcast to the worker fleet",
	})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apool_event_streams",
		Help: "Event streams with at least one local listener",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apool_http_requests_total",
		Help: "HTTP requests served, labeled by route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apool_http_request_duration_seconds",
		Help:    "Latency of HTTP requests, excluding event streams",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "route"})
)
