package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "publishflow", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "publishflow", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	WorkflowActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "publishflow", Name: "workflow_actions_total", Help: "Number of pre-save branches taken by list and action."},
		[]string{"list", "action"},
	)
	WorkflowErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "publishflow", Name: "workflow_errors_total", Help: "Number of failed live database operations by list and action."},
		[]string{"list", "action"},
	)
	LiveOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "publishflow", Name: "live_operation_seconds", Help: "Duration of live database operations.", Buckets: prometheus.DefBuckets},
		[]string{"action"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(WorkflowActions)
	reg.MustRegister(WorkflowErrors)
	reg.MustRegister(LiveOperationDuration)
}
