package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendors_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	WorkflowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendors_workflow_transitions_total",
			Help: "Registration workflow transitions by target state",
		},
		[]string{"state"},
	)

	StoreQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendors_store_query_seconds",
			Help:    "Duration of registration store queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendors_notifications_total",
			Help: "Confirmation notifications by result",
		},
		[]string{"result"},
	)

	RabbitPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vendors_rabbit_publish_failures_total",
			Help: "Total rabbit publish failures",
		},
	)

	RateLimitExceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vendors_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)

	OpenReconciliationGaps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vendors_reconciliation_open_gaps",
			Help: "Payments captured without a persisted registration, awaiting support",
		},
	)
)

var registerOnce sync.Once

func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			WorkflowTransitions,
			StoreQueryDuration,
			NotificationsTotal,
			RabbitPublishFailures,
			RateLimitExceeded,
			OpenReconciliationGaps,
		)
	})
}
