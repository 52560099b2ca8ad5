package ports

import (
	"context"

	"github.com/empireo/brain/internal/core/domain"
)

// CreatePrincipalInput describes a new staff identity.
type CreatePrincipalInput struct {
	Email    string
	Password string
	FullName string
	Roles    []string
}

// ResetPasswordInput is an administrator-driven password reset.
type ResetPasswordInput struct {
	Email       string
	NewPassword string
}

// Profile is the principal as seen by itself, with effective permissions.
type Profile struct {
	Principal   *domain.Principal
	Permissions []domain.Permission
}

// PrincipalService covers the administrative lifecycle of principals.
type PrincipalService interface {
	Bootstrap(ctx context.Context, bootstrapToken string, in CreatePrincipalInput) (*domain.Principal, error)
	Create(ctx context.Context, actorID string, in CreatePrincipalInput) (*domain.Principal, error)
	Deactivate(ctx context.Context, actorID, principalID string) (int64, error)
	ResetPassword(ctx context.Context, actorID string, in ResetPasswordInput) (int64, error)
	Me(ctx context.Context, principalID string) (*Profile, error)
}
