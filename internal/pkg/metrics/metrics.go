// Package metrics provides Prometheus metrics for the modular-api facade
// (RED metrics for HTTP, dispatch and policy evaluation).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "modular_api"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
		},
		[]string{"method", "path"},
	)

	// DispatchTotal counts dispatcher outcomes by module, command and result.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of dispatched commands by module, command and result.",
		},
		[]string{"module", "command", "result"}, // result: ok, denied, rate_limited, error
	)

	// DispatchDurationSeconds tracks end-to-end dispatch pipeline latency.
	DispatchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Dispatch pipeline duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"module", "command"},
	)

	// PolicyDecisionsTotal counts policy engine decisions by effect.
	PolicyDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_decisions_total",
			Help:      "Total number of policy engine decisions by effect.",
		},
		[]string{"effect"}, // effect: allow, deny
	)

	// RateLimitRejectionsTotal counts requests rejected by the rate limiter.
	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		},
		[]string{"route"},
	)

	// AuthLoginAttemptsTotal counts authentication login attempts.
	AuthLoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_login_attempts_total",
			Help:      "Total number of authentication login attempts.",
		},
		[]string{"outcome"}, // outcome: success/failure
	)

	// TokenAllowlistSizeGauge tracks the number of currently-valid tokens.
	TokenAllowlistSizeGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "token_allowlist_size",
			Help:      "Number of tokens currently present in the allowlist.",
		},
	)

	// TokenCleanupDeletedTotal counts expired tokens removed by the cleanup job.
	TokenCleanupDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_cleanup_deleted_total",
			Help:      "Total number of expired tokens deleted by cleanup job.",
		},
	)

	// DBQueryDurationSeconds tracks database query latency by operation type.
	DBQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"}, // operation: per-query name, e.g. insert_policy, query_audit
	)

	// ModuleInstallsTotal counts module install/uninstall operations.
	ModuleInstallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_installs_total",
			Help:      "Total number of module install/uninstall operations.",
		},
		[]string{"module", "operation", "outcome"},
	)

	// AuditRecordsTotal counts audit records written, and how many were found
	// compromised (hash mismatch) on subsequent read.
	AuditRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_total",
			Help:      "Total number of audit records written or found compromised on read.",
		},
		[]string{"outcome"}, // outcome: written, compromised_on_read
	)
)
