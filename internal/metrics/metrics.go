package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "classroom"

var (
	// HTTPRequests counts handled requests by route template, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by route, method and status code.",
	}, []string{"route", "method", "status"})

	// HTTPDuration observes request latency by route template.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	// AttendanceReconciled counts reconciled attendance pairs by outcome.
	AttendanceReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attendance_reconciled_total",
		Help:      "Attendance pairs reconciled, by result (inserted, updated, failed).",
	}, []string{"result"})

	// ExamsRecorded counts stored exam records.
	ExamsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exams_recorded_total",
		Help:      "Exam records created.",
	})

	// AnalyticsCompute observes full-scan analytics computation time.
	AnalyticsCompute = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analytics_compute_seconds",
		Help:      "Time spent loading and aggregating class analytics.",
		Buckets:   prometheus.DefBuckets,
	})

	// ActivityRecorded counts activity entries written by the recorder, by kind.
	ActivityRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_recorded_total",
		Help:      "Activity feed entries written, by event kind.",
	}, []string{"kind"})
)
