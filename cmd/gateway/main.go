package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/shreed27/AgentHub-sub004/internal/admission"
	"github.com/shreed27/AgentHub-sub004/internal/api/dto"
	"github.com/shreed27/AgentHub-sub004/internal/api/handler"
	"github.com/shreed27/AgentHub-sub004/internal/api/router"
	"github.com/shreed27/AgentHub-sub004/internal/config"
	"github.com/shreed27/AgentHub-sub004/internal/executor"
	"github.com/shreed27/AgentHub-sub004/internal/scheduler"
	"github.com/shreed27/AgentHub-sub004/internal/store"
	"github.com/shreed27/AgentHub-sub004/internal/webhook"
	"github.com/shreed27/AgentHub-sub004/shared/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("GATEWAY_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/gateway/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
	})

	appLogger.Info("Starting gateway",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Job store
	jobStore, err := initStore(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}
	defer jobStore.Close()

	// Webhook notifier
	notifier := webhook.New(cfg.Webhook.Timeout, appLogger)

	// Scheduler
	sched := scheduler.New(&scheduler.Config{
		Concurrency:    cfg.Scheduler.Concurrency,
		JobTimeout:     cfg.Scheduler.JobTimeout,
		DrainInterval:  cfg.Scheduler.DrainInterval,
		Retention:      cfg.Scheduler.Retention,
		RetentionSweep: cfg.Scheduler.RetentionSweep,
		Executor:       executor.NewSimulated(500 * time.Millisecond),
		Store:          jobStore,
		Notifier:       notifier,
		Logger:         appLogger,
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// Admission pipeline
	limiter, err := initLimiter(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	// The bypass is hard-gated: a production environment always runs the
	// authoritative verifier regardless of configuration.
	allowUnverified := cfg.Payment.AllowUnverified && cfg.App.Environment != "production"
	if cfg.Payment.AllowUnverified && !allowUnverified {
		appLogger.Warn("payment.allow_unverified is set but ignored in production")
	}

	payments := admission.NewPaymentService(&admission.PaymentServiceConfig{
		Verifier:        unconfiguredVerifier(),
		FreshnessWindow: cfg.Payment.FreshnessWindow,
		CacheTTL:        cfg.Payment.CacheTTL,
		AllowUnverified: allowUnverified,
		Logger:          appLogger,
	})
	defer payments.Close()

	pricing := admission.NewPricing(cfg.Pricing.DefaultTier, cfg.Pricing.Tiers)

	controller := admission.NewController(&admission.ControllerConfig{
		Pricing:         pricing,
		Limiter:         limiter,
		Payments:        payments,
		IPLimit:         cfg.RateLimit.IPLimit,
		WalletLimit:     cfg.RateLimit.WalletLimit,
		PaymentAddress:  cfg.Payment.Address,
		Token:           cfg.Payment.Token,
		Network:         cfg.Payment.Network,
		Currency:        cfg.Payment.Currency,
		Facilitator:     cfg.Payment.Facilitator,
		ProtocolVersion: cfg.Payment.ProtocolVersion,
		Logger:          appLogger,
	})

	r := router.SetupRouter(&handler.Dependencies{
		Logger:    appLogger,
		Admission: controller,
		Scheduler: sched,
		Pricing:   pricing,
		Payment: dto.PaymentInfo{
			Address:     cfg.Payment.Address,
			Token:       cfg.Payment.Token,
			Network:     cfg.Payment.Network,
			Currency:    cfg.Payment.Currency,
			Protocol:    admission.ProtocolID,
			Version:     cfg.Payment.ProtocolVersion,
			Facilitator: cfg.Payment.Facilitator,
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("Starting HTTP server", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initStore selects the job store backend. Persistence off means every
// restart starts empty.
func initStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if !cfg.Scheduler.PersistenceEnabled {
		logger.Warn("Persistence disabled; jobs will not survive a restart")
		return store.Nop{}, nil
	}

	switch cfg.Storage.Driver {
	case "postgres":
		return store.NewPostgresStore(&store.PostgresConfig{
			Host:            cfg.Storage.Postgres.Host,
			Port:            cfg.Storage.Postgres.Port,
			User:            cfg.Storage.Postgres.User,
			Password:        cfg.Storage.Postgres.Password,
			Database:        cfg.Storage.Postgres.Database,
			SSLMode:         cfg.Storage.Postgres.SSLMode,
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Storage.Postgres.ConnMaxIdleTime,
		}, logger)
	default:
		return store.NewFileStore(cfg.Storage.Dir)
	}
}

// initLimiter selects the rate limiter backend.
func initLimiter(cfg *config.Config, logger *slog.Logger) (admission.Limiter, error) {
	if cfg.RateLimit.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.Redis.Addr,
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping Redis: %w", err)
		}

		logger.Info("Using Redis rate limiter", slog.String("addr", cfg.RateLimit.Redis.Addr))
		return admission.NewRedisLimiter(rdb, cfg.RateLimit.Window), nil
	}

	return admission.NewMemoryLimiter(cfg.RateLimit.Window), nil
}

// unconfiguredVerifier rejects every proof. Deployments plug their on-chain
// receipt verifier here; local runs set payment.allow_unverified instead.
func unconfiguredVerifier() admission.Verifier {
	return admission.VerifierFunc(func(ctx context.Context, proof *admission.Proof) error {
		return errors.New("no payment verifier configured")
	})
}
