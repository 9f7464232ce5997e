package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hermosa/pos-api/internal/common"
	"github.com/hermosa/pos-api/internal/config"
	"github.com/hermosa/pos-api/internal/health"
	"github.com/hermosa/pos-api/internal/notify"
	"github.com/hermosa/pos-api/internal/obs"
	"github.com/hermosa/pos-api/internal/queue"
	"github.com/hermosa/pos-api/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "pos-worker",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	var sender common.EmailSender = common.NopEmailSender{}
	if cfg.EmailEnabled {
		sender = notify.BrevoSender{
			HTTP: resilience.HTTPClient{
				Client: &http.Client{
					Transport: otelhttp.NewTransport(http.DefaultTransport),
					Timeout:   30 * time.Second,
				},
				Breaker:     resilience.NewBreaker("brevo", 5, 30*time.Second, logger),
				BaseBackoff: 200 * time.Millisecond,
				MaxAttempts: 3,
				Jitter:      0.2,
				Timeout:     10 * time.Second,
			},
			BaseURL:   cfg.BrevoBaseURL,
			APIKey:    cfg.BrevoAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}
	} else {
		logger.Warn().Msg("email delivery disabled, emails are dropped")
	}

	worker := queue.Worker{
		R:                 redisClient,
		Prefix:            cfg.QueuePrefix,
		Kind:              notify.EmailTask,
		Concurrency:       2,
		VisibilityTimeout: 30 * time.Second,
		RetryBase:         time.Second,
		RetryJitter:       0.2,
		Logger:            logger,
		Handler:           notify.EmailHandler(sender, logger),
	}

	// tiny health surface so orchestration can probe the worker
	healthHandler := health.Handler{
		Checker: health.RedisPinger(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	}
	r := chi.NewRouter()
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	healthServer := &http.Server{Addr: ":8081", Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("worker health server")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthServer.Shutdown(shutdownCtx)
	}()

	logger.Info().Msg("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
		return
	}
	logger.Info().Msg("worker shutdown complete")
}
