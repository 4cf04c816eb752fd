package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/avelko/account-iam/internal/core/port"
	"github.com/avelko/account-iam/internal/infra/config"
	"github.com/avelko/account-iam/internal/infra/database"
	"github.com/avelko/account-iam/internal/infra/email"
	kafkainfra "github.com/avelko/account-iam/internal/infra/kafka"
	"github.com/avelko/account-iam/internal/infra/logger"
	redisinfra "github.com/avelko/account-iam/internal/infra/redis"
	"github.com/avelko/account-iam/internal/infra/security"
	postgresrepo "github.com/avelko/account-iam/internal/repository/postgres"
	redisrepo "github.com/avelko/account-iam/internal/repository/redis"
	"github.com/avelko/account-iam/internal/transport/http/middleware"
	"github.com/avelko/account-iam/internal/transport/http/routes"
	"github.com/avelko/account-iam/internal/usecase"
)

// Application owns the wired service graph and its lifecycle.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	kafka  *kafkainfra.Producer
}

// New wires the full dependency graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	keyProvider, err := security.NewKeyProvider(cfg.JWT.KeyDirectory, cfg.JWT.KeyID)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init key provider: %w", err)
	}

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	codec := security.NewTokenCodec(keyProvider, cfg.JWT.KeyID, cfg.App.Name, cfg.JWT.AccessTokenTTL)
	hasher := security.Argon2Hasher{}
	codes := security.NewResetCodeGenerator(cfg.Reset.Secret)

	repos := postgresrepo.NewRepositories(pool)

	var eventPublisher port.EventPublisher
	var kafkaProducer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	var notifier port.Notifier
	if cfg.SMTP.Host != "" {
		notifier = email.NewSMTPNotifier(cfg.SMTP, log)
	} else {
		log.Info("smtp host not configured, using logging notifier")
		notifier = email.NewLogNotifier(log)
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Hour
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "acct:rate-limit",
		TTL:       rateLimitWindow * 2,
	})

	lockout := usecase.NewLockoutEvaluator(repos.Policies, repos.Attempts)
	authenticator := usecase.NewAuthenticator(repos.Accounts, repos.Attempts, hasher, codec, lockout, log)
	passwordService := usecase.NewPasswordService(repos.Accounts, repos.History, repos.Policies, hasher, eventPublisher, notifier, cfg.Password, log)
	resetService := usecase.NewResetService(repos.Accounts, repos.Resets, passwordService, hasher, codes, rateLimitStore, notifier, eventPublisher, cfg.Reset, cfg.RateLimit, log)
	accountService := usecase.NewAccountService(repos.Accounts, passwordService, hasher, eventPublisher, log)
	policyService := usecase.NewPolicyService(repos.Policies, repos.Accounts, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	engine, err := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Auth:      authenticator,
			Accounts:  accountService,
			Policies:  policyService,
			Passwords: passwordService,
			Resets:    resetService,
		},
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("register routes: %w", err)
	}

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		kafka:  kafkaProducer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting account API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	return nil
}
