package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
	"github.com/empireo/brain/internal/infrastructure/metrics"
)

// RateLimit throttles an auth action per client IP. The counter key is
// "auth:<action>:<ip>". Limiter errors let the request through.
func RateLimit(limiter ports.RateLimiter, action string, limit int, window time.Duration, log zerolog.Logger) echo.MiddlewareFunc {
	retryAfter := strconv.Itoa(int(window.Round(time.Second) / time.Second))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "auth:" + action + ":" + c.RealIP()

			ok, err := limiter.Allow(c.Request().Context(), key, limit, window)
			if err != nil {
				log.Warn().Err(err).Str("action", action).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}
			if !ok {
				metrics.RateLimitedTotal.WithLabelValues(action).Inc()
				c.Response().Header().Set("Retry-After", retryAfter)
				return domain.ErrRateLimited
			}
			return next(c)
		}
	}
}
