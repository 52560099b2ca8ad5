package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
)

// LoaderProvider attaches a request-scoped permission loader to a context.
type LoaderProvider interface {
	WithLoader(ctx context.Context) context.Context
}

// PermissionCache gives every request its own permission loader so repeated
// checks within the request hit the graph once.
func PermissionCache(p LoaderProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(p.WithLoader(req.Context())))
			return next(c)
		}
	}
}
