// Package metrics exposes Prometheus counters for the authentication flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "authgate"

var (
	// LoginAttemptsTotal counts credential checks by outcome
	// (success, requires_2fa, invalid_credentials).
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Total number of credential login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// SecondFactorTotal counts second-factor checks by method (totp, backup) and outcome.
	SecondFactorTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "second_factor_verifications_total",
			Help:      "Total number of second-factor verifications by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Total number of refresh-token exchanges by outcome.",
		},
		[]string{"outcome"},
	)

	// PasswordResetTotal counts reset lifecycle events (requested, completed, failed).
	PasswordResetTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_reset_total",
			Help:      "Total number of password reset events by stage.",
		},
		[]string{"stage"},
	)

	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
		},
		[]string{"method", "route"},
	)
)
