package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/go-alumni-api/internal/application/delivery"
	"github.com/go-alumni-api/internal/config"
	"github.com/go-alumni-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-alumni-api/internal/infrastructure/jwt"
	s3infra "github.com/go-alumni-api/internal/infrastructure/s3"
	"github.com/go-alumni-api/internal/infrastructure/smtp"
	"github.com/go-alumni-api/internal/infrastructure/sns"
	"github.com/go-alumni-api/internal/infrastructure/sqldb"
	"github.com/go-alumni-api/internal/infrastructure/telemetry"
	"github.com/go-alumni-api/internal/pkg/logger"
	transporthttp "github.com/go-alumni-api/internal/transport/http"
)

const (
	serviceName     = "alumni-api"
	shutdownTimeout = 20 * time.Second
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.AppEnv)
	if envErr != nil {
		log.Debug().Msg("no .env file found, reading from environment")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	metrics, err := telemetry.NewMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	if cfg.DBAutoMigrate {
		if err := sqldb.Migrate(cfg.StoreDriver, cfg.DatabaseURL, "up"); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Str("driver", cfg.StoreDriver).Msg("migrations applied")
	}
	store, err := sqldb.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	// Missing signing material is a configuration error: refuse to start.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return err
	}

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}
	avatars := s3infra.NewStore(s3Client, s3.NewPresignClient(s3Client), cfg.S3BucketName)

	sinks, deadLetters, err := deadLetterSinks(ctx, cfg, log)
	if err != nil {
		return err
	}

	dispatcher := delivery.NewDispatcher(delivery.Config{
		Workers:        cfg.DeliveryWorkers,
		QueueSize:      cfg.DeliveryQueueSize,
		MaxAttempts:    cfg.DeliveryMaxAttempts,
		InitialBackoff: cfg.DeliveryInitialBackoff,
		MaxBackoff:     cfg.DeliveryMaxBackoff,
		SendTimeout:    30 * time.Second,
	}, smtp.NewMailer(cfg), sinks, log, metrics)
	// Workers outlive the signal context so the queue can drain on shutdown.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	dispatcher.Start(workCtx)

	deps := &transporthttp.Deps{
		Store:       store,
		Queue:       dispatcher,
		JWTProvider: jwtProvider,
		Avatars:     avatars,
		Logger:      log,
		Metrics:     metrics,
	}
	if deadLetters != nil {
		deps.DeadLetters = deadLetters
	}
	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced HTTP shutdown")
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("delivery queue not drained")
	}
	cancelWork()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("telemetry flush failed")
	}
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("store close failed")
	}
	log.Info().Msg("server stopped")
	return nil
}

// deadLetterSinks wires the optional DynamoDB table and SNS alert topic.
func deadLetterSinks(ctx context.Context, cfg *config.Config, log *zerolog.Logger) ([]delivery.DeadLetterSink, *dynamo.DeadLetterRepo, error) {
	var (
		sinks []delivery.DeadLetterSink
		repo  *dynamo.DeadLetterRepo
	)
	if table := cfg.DynamoTables.DeadLetters; table != "" {
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("dynamodb client: %w", err)
		}
		if err := dynamo.Bootstrap(ctx, client, table, log); err != nil {
			return nil, nil, fmt.Errorf("bootstrap dead-letter table: %w", err)
		}
		repo = dynamo.NewDeadLetterRepo(client, table)
		sinks = append(sinks, repo)
	}
	if arn := cfg.DeadLetterTopicARN; arn != "" {
		client, err := sns.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("sns client: %w", err)
		}
		sinks = append(sinks, sns.NewDeadLetterPublisher(client, arn))
	}
	if len(sinks) == 0 {
		log.Warn().Msg("no dead-letter sink configured; abandoned deliveries are only logged")
	}
	return sinks, repo, nil
}
