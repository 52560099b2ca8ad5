package ports

import (
	"context"

	"github.com/empireo/brain/internal/core/domain"
)

// PermissionGraph resolves principal -> role -> permission.
type PermissionGraph interface {
	// PermissionsFor returns the union of the permissions of every role held
	// by the principal. Unknown or inactive principals resolve to an empty set.
	PermissionsFor(ctx context.Context, principalID string) (domain.PermissionSet, error)
	// UpsertRole replaces the permission bundle of a role, creating it if needed.
	UpsertRole(ctx context.Context, role domain.Role) error
}
