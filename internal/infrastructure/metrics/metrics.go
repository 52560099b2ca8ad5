// Package metrics defines and registers all custom Prometheus metrics for the
// Brain auth core. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry at package
// init via promauto, and exposed on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "brain"

// ── Authentication metrics ────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "failure" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RefreshTotal counts refresh-token rotations.
// Label:
//   - result: "success", "invalid_token", "unknown_token", "reuse_detected", "rejected" or "error"
var RefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "refresh_total",
		Help:      "Total number of refresh attempts, by result.",
	},
	[]string{"result"},
)

// ReuseDetectedTotal counts presentations of already-revoked refresh tokens.
var ReuseDetectedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "reuse_detected_total",
		Help:      "Total number of refresh token reuse detections (family revoked).",
	},
)

// TokensRevokedTotal counts revoked refresh-token records.
// Label:
//   - reason: rotated, logout, logout_all, password_changed, reuse_detected
var TokensRevokedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "tokens_revoked_total",
		Help:      "Total number of refresh token records revoked, by reason.",
	},
	[]string{"reason"},
)

// ── Gatekeeping metrics ───────────────────────────────────────────────────────

// RateLimitedTotal counts requests rejected by the rate limiter.
// Label:
//   - action: "login" or "refresh"
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "rejected_total",
		Help:      "Total number of requests rejected by the rate limiter, by action.",
	},
	[]string{"action"},
)

// AuthzDecisionsTotal counts authorization decisions.
// Label:
//   - result: "allow", "deny" or "error" (errors are denials)
var AuthzDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "authz",
		Name:      "decisions_total",
		Help:      "Total number of authorization decisions, by result.",
	},
	[]string{"result"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditEventsTotal counts audit writes.
// Label:
//   - result: "written" or "failed"
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "events_total",
		Help:      "Total number of audit events handled, by result.",
	},
	[]string{"result"},
)

// AuditQueueDepth tracks the number of audit events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
