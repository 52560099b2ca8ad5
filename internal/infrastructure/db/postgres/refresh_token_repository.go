package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
)

// RefreshTokenRepository is the refresh token ledger. Rows are only ever
// flipped to revoked, never deleted.
type RefreshTokenRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.RefreshTokenLedger = (*RefreshTokenRepository)(nil)

func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, now: time.Now}
}

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const insertRefreshToken = `
INSERT INTO refresh_tokens (principal_id, token_hash, family_id, issued_at, expires_at, user_agent, ip_address)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

func insertRecord(ctx context.Context, q queryRower, rec *domain.RefreshTokenRecord) error {
	return q.QueryRowContext(ctx, insertRefreshToken,
		rec.PrincipalID, rec.TokenHash, rec.FamilyID,
		rec.IssuedAt.UTC(), rec.ExpiresAt.UTC(), rec.UserAgent, rec.IPAddress,
	).Scan(&rec.ID)
}

func (r *RefreshTokenRepository) Record(ctx context.Context, rec *domain.RefreshTokenRecord) error {
	if err := insertRecord(ctx, r.db, rec); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) Lookup(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error) {
	var (
		rec       domain.RefreshTokenRecord
		reason    string
		revokedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, principal_id, token_hash, family_id, revoked, revoke_reason, revoked_at,
		        issued_at, expires_at, user_agent, ip_address
		 FROM refresh_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(
		&rec.ID, &rec.PrincipalID, &rec.TokenHash, &rec.FamilyID, &rec.Revoked, &reason, &revokedAt,
		&rec.IssuedAt, &rec.ExpiresAt, &rec.UserAgent, &rec.IPAddress,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	rec.RevokeReason = domain.RevokeReason(reason)
	if revokedAt.Valid {
		t := revokedAt.Time.UTC()
		rec.RevokedAt = &t
	}
	rec.IssuedAt = rec.IssuedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return &rec, nil
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, recordID string, reason domain.RevokeReason) (bool, error) {
	if _, err := uuid.Parse(recordID); err != nil {
		return false, domain.ErrRefreshTokenNotFound
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoke_reason = $2, revoked_at = $3 WHERE id = $1 AND NOT revoked`,
		recordID, string(reason), r.now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE id = $1)`, recordID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !exists {
		return false, domain.ErrRefreshTokenNotFound
	}
	return false, nil
}

// Rotate revokes the presented token and inserts its successor in one
// transaction. The conditional UPDATE decides the winner of concurrent
// rotations; a loser sees zero rows and inserts nothing.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, presentedHash string, next *domain.RefreshTokenRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	defer rollback(tx)

	var revokedID string
	err = tx.QueryRowContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoke_reason = $2, revoked_at = $3
		 WHERE token_hash = $1 AND NOT revoked RETURNING id`,
		presentedHash, string(domain.RevokeRotated), r.now().UTC(),
	).Scan(&revokedID)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token_hash = $1)`, presentedHash,
		).Scan(&exists); err != nil {
			return fmt.Errorf("rotate refresh token: %w", err)
		}
		if !exists {
			return domain.ErrRefreshTokenNotFound
		}
		return domain.ErrRefreshTokenRevoked
	}
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	if err := insertRecord(ctx, tx, next); err != nil {
		return fmt.Errorf("rotate refresh token: insert successor: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, familyID string, reason domain.RevokeReason) (int64, error) {
	return r.revokeWhere(ctx, `family_id = $1`, familyID, reason)
}

func (r *RefreshTokenRepository) RevokeAllForPrincipal(ctx context.Context, principalID string, reason domain.RevokeReason) (int64, error) {
	return r.revokeWhere(ctx, `principal_id = $1`, principalID, reason)
}

func (r *RefreshTokenRepository) revokeWhere(ctx context.Context, cond, id string, reason domain.RevokeReason) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoke_reason = $2, revoked_at = $3 WHERE `+cond+` AND NOT revoked`,
		id, string(reason), r.now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return n, nil
}
