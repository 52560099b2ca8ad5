package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/empireo/brain/internal/core/domain"
)

const principalIDKey = "principal_id"

// AccessVerifier checks an access token and returns its claims.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, accessToken string) (*domain.TokenClaims, error)
}

// Auth validates the bearer access token and injects the principal id into
// the echo context.
func Auth(verifier AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return domain.ErrInvalidToken
			}

			claims, err := verifier.VerifyAccess(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(principalIDKey, claims.SubjectID)
			return next(c)
		}
	}
}

// PrincipalID returns the id set by Auth, or "" when the route is public.
func PrincipalID(c echo.Context) string {
	id, _ := c.Get(principalIDKey).(string)
	return id
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
