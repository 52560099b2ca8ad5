package ports

import (
	"context"

	"github.com/empireo/brain/internal/core/domain"
)

// LoginInput carries credentials plus client metadata recorded on the
// refresh token.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// RefreshInput carries the presented refresh token plus client metadata.
type RefreshInput struct {
	RefreshToken string
	UserAgent    string
	IPAddress    string
}

// ChangePasswordInput is a self-service password change.
type ChangePasswordInput struct {
	PrincipalID     string
	CurrentPassword string
	NewPassword     string
}

// AuthService is the Authenticator.
type AuthService interface {
	Login(ctx context.Context, in LoginInput) (*domain.TokenPair, error)
	Refresh(ctx context.Context, in RefreshInput) (*domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, principalID string) (int64, error)
	ChangePassword(ctx context.Context, in ChangePasswordInput) error
	// VerifyAccess checks an access token and returns its claims.
	VerifyAccess(ctx context.Context, accessToken string) (*domain.TokenClaims, error)
}

// Authorizer answers "can principal P do action A on resource R".
type Authorizer interface {
	Check(ctx context.Context, principalID, resource, action string) bool
	// Require is Check that returns domain.ErrForbidden on denial.
	Require(ctx context.Context, principalID, resource, action string) error
	Permissions(ctx context.Context, principalID string) (domain.PermissionSet, error)
}
