// @title           Brain Auth API
// @version         1.0
// @description     Authentication and authorization core for the Brain CRM.
// @BasePath        /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/empireo/brain/internal/api"
	"github.com/empireo/brain/internal/api/handler"
	"github.com/empireo/brain/internal/core/service"
	"github.com/empireo/brain/internal/infrastructure/cache"
	"github.com/empireo/brain/internal/infrastructure/db"
	redisdb "github.com/empireo/brain/internal/infrastructure/db/redis"
	"github.com/empireo/brain/internal/infrastructure/queue"
	"github.com/empireo/brain/internal/infrastructure/token"
	"github.com/empireo/brain/internal/pkg/config"
	"github.com/empireo/brain/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "brain",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("store connection failed")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis connection failed")
	}
	defer rdb.Close()

	audit := queue.NewAuditDispatcher(cfg.Audit.Workers, cfg.Audit.QueueSize, store.Audit, logger.Component("audit"))
	audit.Start(ctx)
	defer audit.Close()

	codec, err := token.NewJWTCodec(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if err != nil {
		log.Fatal().Err(err).Msg("token codec")
	}

	trustedProxies, err := cfg.TrustedProxyNets()
	if err != nil {
		log.Fatal().Err(err).Msg("trusted proxies")
	}

	permissions := cache.NewPermissionCache(store.Graph)
	authz := service.NewAuthorizer(permissions, audit, logger.Component("authz"))

	authService, err := service.NewAuthService(store.Principals, store.Ledger, codec, audit, service.AuthConfig{
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}, logger.Component("auth"))
	if err != nil {
		log.Fatal().Err(err).Msg("auth service")
	}

	principalService := service.NewPrincipalService(store.Principals, store.Ledger, authz, audit, service.PrincipalConfig{
		BootstrapToken: cfg.Auth.BootstrapToken,
		BcryptCost:     cfg.Auth.BcryptCost,
	}, logger.Component("principals"))

	e := api.NewRouter(api.Deps{
		Auth:        authService,
		Principals:  principalService,
		Authz:       authz,
		Limiter:     redisdb.NewRateLimiter(rdb, logger.Component("ratelimit")),
		Permissions: permissions,
		Health: map[string]handler.Pinger{
			store.Driver: store,
			"redis":      redisdb.NewPinger(rdb),
		},
		RateLimit:      cfg.RateLimit,
		TrustedProxies: trustedProxies,
		Log:            logger.Component("http"),
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", handler.HeaderBootstrapToken},
		AllowCredentials: false,
	}).Handler(e)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", store.Driver).Msg("brain listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
