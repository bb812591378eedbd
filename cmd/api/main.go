package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/husnainisworking/personal-blog/internal/application/twofactor"
	"github.com/husnainisworking/personal-blog/internal/config"
	"github.com/husnainisworking/personal-blog/internal/infrastructure/dynamo"
	jwtinfra "github.com/husnainisworking/personal-blog/internal/infrastructure/jwt"
	"github.com/husnainisworking/personal-blog/internal/infrastructure/metrics"
	"github.com/husnainisworking/personal-blog/internal/infrastructure/postgres"
	redisinfra "github.com/husnainisworking/personal-blog/internal/infrastructure/redis"
	"github.com/husnainisworking/personal-blog/internal/infrastructure/smtp"
	"github.com/husnainisworking/personal-blog/internal/infrastructure/sns"
	"github.com/husnainisworking/personal-blog/internal/pkg/logging"
	transporthttp "github.com/husnainisworking/personal-blog/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.AppEnv)
	if envErr != nil {
		logger.Info().Msg("no .env file found, reading from environment")
	}

	if err := run(cfg, &logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx := context.Background()

	pool, err := postgres.NewDBPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := postgres.RunMigrations(ctx, pool, logger); err != nil {
		return err
	}

	redisClient, err := redisinfra.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, logger)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	notifier, err := newNotifier(ctx, cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := &transporthttp.Deps{
		UserRepo:         dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo:      dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		VerificationRepo: dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.UserVerifications),
		Records:          postgres.NewRecordStore(pool, cfg.DBLockTimeout),
		Cache:            redisinfra.NewRecordCache(redisClient, cfg.CacheTTL),
		Limiter:          redisinfra.NewRateLimiter(redisClient),
		Notifier:         notifier,
		JWTProvider:      jwtProvider,
		Metrics:          metrics.New(reg),
		Gatherer:         reg,
		Logger:           logger,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newNotifier picks the code delivery channel.
func newNotifier(ctx context.Context, cfg *config.Config) (twofactor.Notifier, error) {
	switch cfg.TwoFactor.Channel {
	case "sms":
		awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg, cfg.SNSRegion)
		if err != nil {
			return nil, err
		}
		return sns.NewCodeNotifier(sns.NewSender(awsCfg), cfg.TwoFactor.CodeLifetime), nil
	default:
		return smtp.NewCodeNotifier(smtp.NewMailer(cfg), cfg.TwoFactor.CodeLifetime), nil
	}
}
