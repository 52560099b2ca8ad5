package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/empireo/brain/internal/core/domain"
)

// PermissionChecker is the subset of the authorizer the RBAC gate needs.
type PermissionChecker interface {
	Require(ctx context.Context, principalID, resource, action string) error
}

// RequirePermission admits the request only when the authenticated principal
// holds resource:action through any of its roles. It must run after Auth.
func RequirePermission(authz PermissionChecker, resource, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principalID := PrincipalID(c)
			if principalID == "" {
				return domain.ErrInvalidToken
			}
			if err := authz.Require(c.Request().Context(), principalID, resource, action); err != nil {
				return err
			}
			return next(c)
		}
	}
}
