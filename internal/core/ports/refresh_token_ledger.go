package ports

import (
	"context"

	"github.com/empireo/brain/internal/core/domain"
)

// RefreshTokenLedger persists every issued refresh token by hash, grouped
// into rotation families.
type RefreshTokenLedger interface {
	Record(ctx context.Context, rec *domain.RefreshTokenRecord) error
	// Lookup returns domain.ErrRefreshTokenNotFound for an unknown hash.
	Lookup(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error)
	// Revoke flips a single record to revoked. It reports false when the
	// record was already revoked.
	Revoke(ctx context.Context, recordID string, reason domain.RevokeReason) (bool, error)
	// Rotate revokes the record identified by presentedHash with reason
	// "rotated" and inserts next, atomically. It returns
	// domain.ErrRefreshTokenRevoked when the presented record was already
	// revoked at write time; in that case nothing is inserted.
	Rotate(ctx context.Context, presentedHash string, next *domain.RefreshTokenRecord) error
	// RevokeFamily revokes every live record of the family and returns how many.
	RevokeFamily(ctx context.Context, familyID string, reason domain.RevokeReason) (int64, error)
	// RevokeAllForPrincipal revokes every live record of the principal across
	// all families and returns how many.
	RevokeAllForPrincipal(ctx context.Context, principalID string, reason domain.RevokeReason) (int64, error)
}
