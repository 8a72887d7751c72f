package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinledger_operations_total",
			Help: "Ledger operations by kind and outcome",
		},
		[]string{"operation", "result"},
	)

	LedgerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinledger_operation_duration_seconds",
			Help:    "Ledger operation latency including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CoinsMovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinledger_coins_total",
			Help: "Coins credited, debited and expired",
		},
		[]string{"direction", "source"},
	)

	WriteConflictRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinledger_write_conflict_retries_total",
			Help: "Transactions retried after a write conflict",
		},
		[]string{"operation"},
	)

	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinledger_job_runs_total",
			Help: "Batch job runs by job and outcome",
		},
		[]string{"job", "result"},
	)

	JobUsersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinledger_job_users_total",
			Help: "Users visited by batch jobs by outcome",
		},
		[]string{"job", "outcome"},
	)

	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinledger_notifications_total",
			Help: "Notifications delivered to push by kind and status",
		},
		[]string{"kind", "status"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordOperation counts one ledger operation. result is "ok" or an error kind.
func RecordOperation(operation, result string, duration float64) {
	LedgerOperationsTotal.WithLabelValues(operation, result).Inc()
	LedgerOperationDuration.WithLabelValues(operation).Observe(duration)
}

func RecordCoins(direction, source string, amount int64) {
	if amount <= 0 {
		return
	}
	CoinsMovedTotal.WithLabelValues(direction, source).Add(float64(amount))
}

func RecordRetry(operation string) {
	WriteConflictRetriesTotal.WithLabelValues(operation).Inc()
}

func RecordJobRun(job, result string) {
	JobRunsTotal.WithLabelValues(job, result).Inc()
}

func RecordJobUser(job, outcome string) {
	JobUsersProcessed.WithLabelValues(job, outcome).Inc()
}

func RecordNotification(kind, status string) {
	NotificationsSentTotal.WithLabelValues(kind, status).Inc()
}
