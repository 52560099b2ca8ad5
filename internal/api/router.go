package api

import (
	"net"
	"sync"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/empireo/brain/docs"
	"github.com/empireo/brain/internal/api/handler"
	"github.com/empireo/brain/internal/api/middleware"
	"github.com/empireo/brain/internal/core/ports"
	"github.com/empireo/brain/internal/pkg/config"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Auth        ports.AuthService
	Principals  ports.PrincipalService
	Authz       ports.Authorizer
	Limiter     ports.RateLimiter
	Permissions middleware.LoaderProvider
	Health      map[string]handler.Pinger
	RateLimit   config.RateLimitConfig
	// TrustedProxies are the ranges allowed to set X-Forwarded-For. With none,
	// the client address is the TCP peer.
	TrustedProxies []*net.IPNet
	Log            zerolog.Logger
}

// echoprometheus registers its collectors on the default registry, which
// only accepts them once per process.
var httpMetrics = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddleware("brain")
})

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor(d.TrustedProxies)
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(httpMetrics())
	if d.Permissions != nil {
		e.Use(middleware.PermissionCache(d.Permissions))
	}

	authHandler := handler.NewAuthHandler(d.Auth, d.Principals)
	principalHandler := handler.NewPrincipalHandler(d.Principals)
	healthHandler := handler.NewHealthHandler(d.Health)
	requireAuth := middleware.Auth(d.Auth)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/login", authHandler.Login,
		middleware.RateLimit(d.Limiter, "login", d.RateLimit.LoginLimit, d.RateLimit.LoginWindow, d.Log))
	auth.POST("/refresh", authHandler.Refresh,
		middleware.RateLimit(d.Limiter, "refresh", d.RateLimit.RefreshLimit, d.RateLimit.RefreshWindow, d.Log))
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/logout-all", authHandler.LogoutAll, requireAuth)
	auth.POST("/change-password", authHandler.ChangePassword, requireAuth)
	auth.GET("/me", authHandler.Me, requireAuth)
	auth.POST("/bootstrap", authHandler.Bootstrap)

	// --- Principal administration ---
	admin := e.Group("/admin/principals", requireAuth)
	admin.POST("", principalHandler.Create, middleware.RequirePermission(d.Authz, "users", "create"))
	admin.POST("/reset-password", principalHandler.ResetPassword, middleware.RequirePermission(d.Authz, "users", "update"))
	admin.POST("/:id/deactivate", principalHandler.Deactivate, middleware.RequirePermission(d.Authz, "users", "update"))

	// --- Health probes (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)

	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// ipExtractor decides what c.RealIP returns, which keys the rate limiter and
// is recorded on tokens and audit events. Forwarding headers are only read
// when the request arrives from a configured proxy.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}
