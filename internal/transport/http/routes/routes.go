package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/infra/config"
	"github.com/avelko/account-iam/internal/transport/http/handlers"
	"github.com/avelko/account-iam/internal/transport/http/middleware"
	"github.com/avelko/account-iam/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth      *usecase.Authenticator
	Accounts  *usecase.AccountService
	Policies  *usecase.PolicyService
	Passwords *usecase.PasswordService
	Resets    *usecase.ResetService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Metrics  *middleware.HTTPMetrics
	Services ServiceSet
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware. Two API
// surfaces are mounted: /api/admin authenticates administrators and carries
// the management endpoints, /api/public authenticates users and carries the
// self-service and reset endpoints.
func Register(deps Dependencies) (*gin.Engine, error) {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(deps.Config.App.TrustedProxies); err != nil {
		return nil, err
	}

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tokenTTL := deps.Config.JWT.AccessTokenTTL
	passwordHandler := handlers.NewPasswordHandler(deps.Services.Passwords, deps.Services.Resets)

	admin := r.Group("/api/admin")
	{
		adminAuth := handlers.NewAuthHandler(deps.Services.Auth, domain.SurfaceAdmin, tokenTTL)
		adminAuth.RegisterRoutes(admin)

		protected := admin.Group("")
		protected.Use(middleware.RequireAuth(
			deps.Services.Auth,
			deps.Services.Passwords,
			domain.KindAdministrator,
			"/api/admin/password",
		))

		passwordHandler.RegisterChangeRoute(protected)
		handlers.NewAccountHandler(deps.Services.Accounts).RegisterRoutes(protected)
		handlers.NewPolicyHandler(deps.Services.Policies).RegisterRoutes(protected)
	}

	public := r.Group("/api/public")
	{
		publicAuth := handlers.NewAuthHandler(deps.Services.Auth, domain.SurfacePublic, tokenTTL)
		publicAuth.RegisterRoutes(public)

		passwordHandler.RegisterResetRoutes(public)

		protected := public.Group("")
		protected.Use(middleware.RequireAuth(
			deps.Services.Auth,
			deps.Services.Passwords,
			domain.KindUser,
			"/api/public/password",
		))

		passwordHandler.RegisterChangeRoute(protected)
	}

	return r, nil
}
