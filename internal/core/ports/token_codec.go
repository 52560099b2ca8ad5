package ports

import (
	"time"

	"github.com/empireo/brain/internal/core/domain"
)

// TokenCodec creates and parses signed, expiring tokens.
type TokenCodec interface {
	Issue(subjectID string, kind domain.TokenKind, ttl time.Duration) (string, *domain.TokenClaims, error)
	// Verify fails with domain.ErrInvalidToken on a bad signature, malformed
	// payload or expired token.
	Verify(token string) (*domain.TokenClaims, error)
	// Hash derives the ledger key of a raw token.
	Hash(token string) string
}
