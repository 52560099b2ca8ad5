package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

type PrincipalRepository struct {
	db *sql.DB
}

var _ ports.PrincipalRepository = (*PrincipalRepository)(nil)

func NewPrincipalRepository(db *sql.DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

const selectPrincipal = `
SELECT p.id, p.email, p.full_name, p.password_hash, p.is_active, p.last_login_at,
       p.created_at, p.updated_at,
       COALESCE(array_agg(pr.role_name ORDER BY pr.role_name) FILTER (WHERE pr.role_name IS NOT NULL), '{}')
FROM principals p
LEFT JOIN principal_roles pr ON pr.principal_id = p.id
`

func (r *PrincipalRepository) Create(ctx context.Context, p *domain.Principal) (*domain.Principal, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create principal: %w", err)
	}
	defer rollback(tx)

	out := *p
	out.Roles = append([]string(nil), p.Roles...)
	err = tx.QueryRowContext(ctx,
		`INSERT INTO principals (email, full_name, password_hash, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.Email, p.FullName, p.PasswordHash, p.Active, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	).Scan(&out.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrPrincipalExists
		}
		return nil, fmt.Errorf("insert principal: %w", err)
	}

	for _, role := range p.Roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO principal_roles (principal_id, role_name) VALUES ($1, $2)`,
			out.ID, role,
		); err != nil {
			return nil, fmt.Errorf("assign role %s: %w", role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create principal: %w", err)
	}
	return &out, nil
}

func (r *PrincipalRepository) FindByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return r.findOne(ctx, selectPrincipal+`WHERE p.email = $1 GROUP BY p.id`, email)
}

func (r *PrincipalRepository) FindByID(ctx context.Context, id string) (*domain.Principal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrPrincipalNotFound
	}
	return r.findOne(ctx, selectPrincipal+`WHERE p.id = $1 GROUP BY p.id`, id)
}

func (r *PrincipalRepository) findOne(ctx context.Context, query string, arg any) (*domain.Principal, error) {
	var (
		p         domain.Principal
		lastLogin sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Email, &p.FullName, &p.PasswordHash, &p.Active, &lastLogin,
		&p.CreatedAt, &p.UpdatedAt, pq.Array(&p.Roles),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		p.LastLoginAt = &t
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (r *PrincipalRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, `UPDATE principals SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
}

func (r *PrincipalRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, `UPDATE principals SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
}

func (r *PrincipalRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE principals SET last_login_at = $2 WHERE id = $1`, id, at.UTC())
}

func (r *PrincipalRepository) exec(ctx context.Context, query, id string, arg any) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrPrincipalNotFound
	}
	res, err := r.db.ExecContext(ctx, query, id, arg)
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	if n == 0 {
		return domain.ErrPrincipalNotFound
	}
	return nil
}

func (r *PrincipalRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM principals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count principals: %w", err)
	}
	return n, nil
}
