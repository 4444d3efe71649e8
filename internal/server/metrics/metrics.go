// Package metrics exposes Prometheus metrics for the account server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskmanager"

// Login outcomes.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeError              = "error"
)

// Reset stages and outcomes.
const (
	StageRequest = "request"
	StageConfirm = "confirm"

	OutcomeIssued       = "issued"
	OutcomeIgnored      = "ignored"
	OutcomeInvalidToken = "invalid_token"
	OutcomePolicy       = "policy"
)

var (
	// LoginTotal counts login attempts by outcome.
	LoginTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_total",
			Help:      "Total number of login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// LockoutsTotal counts transitions into the locked state.
	LockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "lockouts_total",
			Help:      "Total number of accounts locked after repeated failures.",
		},
	)

	// ResetTotal counts password reset operations by stage and outcome.
	ResetTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "reset_total",
			Help:      "Total number of password reset operations by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	// AdmissionRejectedTotal counts requests turned away by an admission policy.
	AdmissionRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "rejected_total",
			Help:      "Total number of requests rejected by admission policy.",
		},
		[]string{"policy"},
	)

	// HTTPRequestTotal counts requests by method, route and status.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds is the request latency histogram.
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2.5, 10),
		},
		[]string{"method", "route"},
	)
)
