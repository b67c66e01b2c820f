package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mpoirier/auth-core/internal/config"
	"github.com/mpoirier/auth-core/internal/handler"
	"github.com/mpoirier/auth-core/internal/repository"
	"github.com/mpoirier/auth-core/internal/service"
	"github.com/mpoirier/auth-core/internal/utils"
	"github.com/mpoirier/auth-core/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra   Infrastructure
	config  *config.Config
	router  *gin.Engine
	server  *http.Server
	cleaner *service.Cleaner
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	repos := repository.NewRepositories(infra.Postgres())
	clock := service.NewSystemClock()
	hasher := utils.NewBcryptHasher(cfg.Auth.BCryptCost)

	metrics, err := observability.NewAuthMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create auth metrics: %w", err)
	}

	tokenManager := service.NewTokenManager(
		repos.Token,
		repos.User,
		clock,
		cfg.Auth.VerificationTokenTTL.Duration,
		cfg.Auth.ResetTokenTTL.Duration,
	)

	rateLimiter := service.NewLoginRateLimiter(
		repos.LoginAttempt,
		clock,
		infra.Logger(),
		cfg.Auth.LoginMaxAttempts,
		cfg.Auth.LoginWindow.Duration,
	)

	var mailer service.Mailer
	if cfg.SMTP.Enabled() {
		mailer = service.NewSMTPMailer(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Username,
			cfg.SMTP.Password,
			cfg.SMTP.From,
			cfg.Server.PublicURL,
		)
	} else {
		mailer = service.NewLogMailer(infra.Logger())
	}

	authService := service.NewAuthService(
		repos.User,
		tokenManager,
		rateLimiter,
		hasher,
		mailer,
		infra.Logger(),
		metrics,
		clock,
		cfg.Auth.TokenCooldown.Duration,
	)

	sessionService := service.NewSessionService(
		infra.Redis(),
		cfg.Session.Secret,
		cfg.Session.TTL.Duration,
		clock,
	)

	requestLimiter := service.NewRequestLimiter(
		infra.Redis(),
		infra.Logger(),
		cfg.Auth.RequestLimitMax,
		cfg.Auth.RequestLimitWindow.Duration,
	)

	cleaner := service.NewCleaner(
		repos,
		infra.Logger(),
		clock,
		cfg.Cleanup.Interval.Duration,
		cfg.Cleanup.AttemptRetention.Duration,
		cfg.Cleanup.UnverifiedRetention.Duration,
	)

	authHandler := handler.NewAuthHandler(authService, sessionService, cfg.Session.TTL.Duration)
	healthChecker := NewHealthChecker(infra)

	router := gin.Default()
	router.Use(otelgin.Middleware("auth-core"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, authHandler, sessionService, requestLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:   infra,
		config:  cfg,
		router:  router,
		server:  srv,
		cleaner: cleaner,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	sessions *service.SessionService,
	requestLimiter *service.RequestLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	throttle := handler.RequestLimitMiddleware(requestLimiter, cfg.Auth.RequestLimitMax)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", throttle, authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/verify-email", authHandler.VerifyEmail)
			auth.POST("/resend-verification", throttle, authHandler.ResendVerification)
			auth.POST("/forgot-password", throttle, authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", handler.SessionMiddleware(sessions), authHandler.GetMe)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go a.cleaner.Run(ctx)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
