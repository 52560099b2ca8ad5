package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

// PermissionRepository resolves principal -> principal_roles ->
// role_permissions -> permissions.
type PermissionRepository struct {
	db *sql.DB
}

var _ ports.PermissionGraph = (*PermissionRepository)(nil)

func NewPermissionRepository(db *sql.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) PermissionsFor(ctx context.Context, principalID string) (domain.PermissionSet, error) {
	set := domain.NewPermissionSet()
	if _, err := uuid.Parse(principalID); err != nil {
		return set, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT perm.resource, perm.action
		FROM principals p
		JOIN principal_roles pr ON pr.principal_id = p.id
		JOIN role_permissions rp ON rp.role_name = pr.role_name
		JOIN permissions perm ON perm.id = rp.permission_id
		WHERE p.id = $1 AND p.is_active`,
		principalID,
	)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.Resource, &p.Action); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		set.Add(p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	return set, nil
}

// UpsertRole replaces the permission bundle of the role in one transaction.
func (r *PermissionRepository) UpsertRole(ctx context.Context, role domain.Role) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert role %s: %w", role.Name, err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO roles (name, description, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, updated_at = now()`,
		role.Name, role.Description,
	); err != nil {
		return fmt.Errorf("upsert role %s: %w", role.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_name = $1`, role.Name); err != nil {
		return fmt.Errorf("upsert role %s: clear permissions: %w", role.Name, err)
	}

	for _, p := range role.Permissions {
		var permID int64
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO permissions (resource, action) VALUES ($1, $2)
			 ON CONFLICT (resource, action) DO UPDATE SET resource = EXCLUDED.resource
			 RETURNING id`,
			p.Resource, p.Action,
		).Scan(&permID); err != nil {
			return fmt.Errorf("upsert permission %s: %w", p, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (role_name, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			role.Name, permID,
		); err != nil {
			return fmt.Errorf("grant %s to %s: %w", p, role.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert role %s: %w", role.Name, err)
	}
	return nil
}
