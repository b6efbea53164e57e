// Package metrics defines and registers all custom Prometheus metrics for
// the auth lifecycle service. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics self-register with the default registry via promauto; the
// /metrics route exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "authlifecycle"

// OTPRequestsTotal counts challenge requests sent to the identity service.
// Labels:
//   - purpose: "login" or "registration"
//   - result: "ok" or "error"
var OTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_requests_total",
		Help:      "Total number of OTP challenge requests, by purpose and result.",
	},
	[]string{"purpose", "result"},
)

// OTPVerificationsTotal counts verification attempts.
// Labels:
//   - purpose: "login" or "registration"
//   - result: "ok" or "error"
var OTPVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_verifications_total",
		Help:      "Total number of OTP verification attempts, by purpose and result.",
	},
	[]string{"purpose", "result"},
)

// LockoutsTotal counts lockout countdowns started from locked responses.
// Label:
//   - purpose: the flow that received the locked response
var LockoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lockouts_total",
		Help:      "Total number of account lockout countdowns started.",
	},
	[]string{"purpose"},
)

// RevalidationsTotal counts periodic token revalidation outcomes.
// Label:
//   - result: "valid", "invalid", or "transport_error"
var RevalidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "revalidations_total",
		Help:      "Total number of periodic token revalidations, by result.",
	},
	[]string{"result"},
)

// SessionsTerminatedTotal counts sessions the watchdog ended unilaterally.
// Label:
//   - reason: "inactivity", "invalid_token", or "transport_failure"
var SessionsTerminatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_terminated_total",
		Help:      "Total number of sessions terminated by the watchdog, by reason.",
	},
	[]string{"reason"},
)

// ActiveClientSessions tracks the number of live per-client lifecycles in
// the registry.
var ActiveClientSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_client_sessions",
		Help:      "Current number of tracked client sessions.",
	},
)
