package domain

import "time"

// Audit event types emitted by the auth core.
const (
	EventLogin                = "auth.login"
	EventLoginFailed          = "auth.login_failed"
	EventRefresh              = "auth.refresh"
	EventRefreshReuseDetected = "auth.refresh_reuse_detected"
	EventLogout               = "auth.logout"
	EventLogoutAll            = "auth.logout_all"
	EventPasswordChanged      = "auth.password_changed"
	EventPasswordReset        = "auth.password_reset"
	EventAccessDenied         = "auth.access_denied"
	EventBootstrap            = "auth.bootstrap"
	EventPrincipalCreated     = "principal.created"
	EventPrincipalDeactivated = "principal.deactivated"
)

// Entity types referenced by audit events.
const (
	EntityPrincipal   = "user"
	EntityTokenFamily = "token_family"
	EntityAnonymous   = "anonymous"
)

// AuditEvent is one append-only entry of the audit log.
type AuditEvent struct {
	EventType  string
	ActorID    string
	EntityType string
	EntityID   string
	Metadata   map[string]any
	OccurredAt time.Time
}
