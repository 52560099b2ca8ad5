package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
	"github.com/empireo/brain/internal/infrastructure/metrics"
)

// Authorizer resolves permissions through the permission graph and fails
// closed: any lookup error denies.
type Authorizer struct {
	graph ports.PermissionGraph
	audit ports.AuditSink
	log   zerolog.Logger
	now   func() time.Time
}

var _ ports.Authorizer = (*Authorizer)(nil)

func NewAuthorizer(graph ports.PermissionGraph, audit ports.AuditSink, log zerolog.Logger) *Authorizer {
	return &Authorizer{graph: graph, audit: audit, log: log, now: time.Now}
}

// Permissions returns the effective permission set of the principal.
func (a *Authorizer) Permissions(ctx context.Context, principalID string) (domain.PermissionSet, error) {
	if principalID == "" {
		return domain.PermissionSet{}, nil
	}
	return a.graph.PermissionsFor(ctx, principalID)
}

// Check reports whether the principal holds exactly (resource, action) via
// any of its roles.
func (a *Authorizer) Check(ctx context.Context, principalID, resource, action string) bool {
	if principalID == "" || resource == "" || action == "" {
		metrics.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
		return false
	}

	perms, err := a.graph.PermissionsFor(ctx, principalID)
	if err != nil {
		metrics.AuthzDecisionsTotal.WithLabelValues("error").Inc()
		a.log.Warn().Err(err).
			Str("principal_id", principalID).
			Str("resource", resource).
			Str("action", action).
			Msg("permission lookup failed, denying")
		return false
	}

	if !perms.Has(resource, action) {
		metrics.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
		return false
	}
	metrics.AuthzDecisionsTotal.WithLabelValues("allow").Inc()
	return true
}

// Require is Check returning domain.ErrForbidden on denial. Denials are
// written to the audit log.
func (a *Authorizer) Require(ctx context.Context, principalID, resource, action string) error {
	if a.Check(ctx, principalID, resource, action) {
		return nil
	}
	emitAudit(ctx, a.audit, a.log, a.now, domain.AuditEvent{
		EventType:  domain.EventAccessDenied,
		ActorID:    principalID,
		EntityType: domain.EntityPrincipal,
		EntityID:   principalID,
		Metadata: map[string]any{
			"resource": resource,
			"action":   action,
		},
	})
	return domain.ErrForbidden
}
