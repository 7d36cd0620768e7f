package telemetry

import "github.com/prometheus/client_golang/prometheus"

// SchedulerJobsTotal counts scheduler job outcomes by job name and status
// (completed/failed/timeout/skipped).
var SchedulerJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aeterna",
		Subsystem: "scheduler",
		Name:      "jobs_total",
		Help:      "Total number of scheduler job executions by job name and outcome.",
	},
	[]string{"job", "status"},
)

// SchedulerJobDuration observes job execution time, excluding lock wait.
var SchedulerJobDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "aeterna",
		Subsystem: "scheduler",
		Name:      "job_duration_seconds",
		Help:      "Scheduler job execution duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
	},
	[]string{"job"},
)

// ApprovalsDecidedTotal counts decisions recorded on approval requests.
var ApprovalsDecidedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aeterna",
		Subsystem: "approvals",
		Name:      "decided_total",
		Help:      "Total number of approval decisions recorded, by verdict.",
	},
	[]string{"verdict"},
)

// ApprovalsEscalatedTotal counts escalations by tier.
var ApprovalsEscalatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aeterna",
		Subsystem: "approvals",
		Name:      "escalated_total",
		Help:      "Total number of approval requests escalated, by tier.",
	},
	[]string{"tier"},
)

// ConfirmationsResolvedTotal counts human-confirmation resolutions.
var ConfirmationsResolvedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aeterna",
		Subsystem: "confirmations",
		Name:      "resolved_total",
		Help:      "Total number of human confirmation requests resolved, by outcome.",
	},
	[]string{"outcome"},
)

// GraphCommunityDetectionDuration observes community detection run time.
var GraphCommunityDetectionDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "aeterna",
		Subsystem: "graph",
		Name:      "community_detection_duration_seconds",
		Help:      "Leiden-style community detection duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	},
)

// BackupsTotal counts backup/restore attempts by operation and outcome.
var BackupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aeterna",
		Subsystem: "backup",
		Name:      "operations_total",
		Help:      "Total number of backup/restore operations, by op and outcome.",
	},
	[]string{"op", "outcome"},
)

// HTTPRequestDuration observes request duration for the optional RPC shim,
// labeled by method, route pattern, and status code.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "aeterna",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	},
	[]string{"method", "route", "status"},
)

// All returns every Aeterna-specific metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		SchedulerJobsTotal,
		SchedulerJobDuration,
		ApprovalsDecidedTotal,
		ApprovalsEscalatedTotal,
		ConfirmationsResolvedTotal,
		GraphCommunityDetectionDuration,
		BackupsTotal,
		HTTPRequestDuration,
	}
}
