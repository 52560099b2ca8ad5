package ports

import (
	"context"
	"time"

	"github.com/empireo/brain/internal/core/domain"
)

// PrincipalRepository is the credential store: staff identities and their
// password hashes.
type PrincipalRepository interface {
	// FindByEmail returns domain.ErrPrincipalNotFound when no principal has the
	// (already normalised) email.
	FindByEmail(ctx context.Context, email string) (*domain.Principal, error)
	FindByID(ctx context.Context, id string) (*domain.Principal, error)
	// Create returns domain.ErrPrincipalExists on a duplicate email.
	Create(ctx context.Context, p *domain.Principal) (*domain.Principal, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Count(ctx context.Context) (int64, error)
}
