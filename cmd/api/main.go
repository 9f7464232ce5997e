package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hermosa/pos-api/internal/cart"
	"github.com/hermosa/pos-api/internal/catalog"
	"github.com/hermosa/pos-api/internal/checkout"
	"github.com/hermosa/pos-api/internal/config"
	"github.com/hermosa/pos-api/internal/customer"
	"github.com/hermosa/pos-api/internal/events"
	"github.com/hermosa/pos-api/internal/health"
	"github.com/hermosa/pos-api/internal/notify"
	"github.com/hermosa/pos-api/internal/obs"
	"github.com/hermosa/pos-api/internal/queue"
	"github.com/hermosa/pos-api/internal/ratelimit"
	"github.com/hermosa/pos-api/internal/sales"
	"github.com/hermosa/pos-api/internal/stock"
	"github.com/hermosa/pos-api/internal/stores"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pos-api",
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error().Err(err).Msg("redis unreachable at startup, queue features degraded")
	}
	cancel()

	httpMetrics := obs.NewHTTPMetrics("pos", nil, nil)
	domainMetrics := obs.NewDomainMetrics("pos", nil)

	validate := validator.New()

	catalogSvc := catalog.NewService()
	cartSvc := cart.NewService(catalogSvc)
	customerSvc := customer.NewService()
	storeSvc := stores.NewService()
	saleSvc := sales.NewService()

	seedDefaultStore(storeSvc, logger)

	enqueuer := queue.Enqueuer{R: redisClient, Prefix: cfg.QueuePrefix}
	bus := &events.Bus{
		Log: &events.MemoryLog{},
		Scheduler: notify.EmailScheduler{
			Queue:       enqueuer,
			Sales:       saleSvc,
			MaxAttempts: cfg.QueueMaxAttempts,
			Logger:      logger,
		},
		Notifiers: []events.Notifier{domainMetrics},
	}

	checkoutSvc := &checkout.Service{
		Cart:      cartSvc,
		Catalog:   catalogSvc,
		Customers: customerSvc,
		Stores:    storeSvc,
		Sales:     saleSvc,
		Events:    bus,
		Logger:    logger,
	}

	catalogHandler := &catalog.Handler{Svc: catalogSvc, Validate: validate}
	cartHandler := &cart.Handler{Svc: cartSvc, Validate: validate}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Validate: validate}
	saleHandler := &sales.Handler{Svc: saleSvc, Events: bus, Validate: validate}
	customerHandler := &customer.Handler{Svc: customerSvc, Validate: validate}
	storeHandler := &stores.Handler{Svc: storeSvc, Validate: validate}
	healthHandler := health.Handler{
		Checker: health.RedisPinger(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	}

	checkoutLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: cfg.QueuePrefix + ":rl:"},
		Config: ratelimit.Config{
			Key:    ratelimit.RegisterKey,
			Window: cfg.CheckoutRateWindow,
			Max:    cfg.CheckoutRateMax,
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("checkout rate limiter")
		},
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := &stock.Checker{
		Catalog:   catalogSvc,
		Queue:     enqueuer,
		Events:    bus,
		Threshold: cfg.LowStockThreshold,
		Recipient: cfg.LowStockRecipient,
		Interval:  cfg.LowStockInterval,
		Logger:    logger,
	}
	go checker.Run(rootCtx)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Accept", "Content-Type", cart.RegisterHeader},
		AllowCredentials: true,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", catalogHandler.ListCategories)
		v.Post("/categories", catalogHandler.CreateCategory)
		v.Get("/products", catalogHandler.ListProducts)
		v.Post("/products", catalogHandler.CreateProduct)
		v.Route("/products/{id}", func(p chi.Router) {
			p.Get("/", catalogHandler.GetProduct)
			p.Put("/", catalogHandler.UpdateProduct)
			p.Delete("/", catalogHandler.DeleteProduct)
		})

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Post("/items", cartHandler.Add)
			c.Delete("/", cartHandler.Clear)
			c.Route("/items/{productId}", func(i chi.Router) {
				i.Patch("/", cartHandler.UpdateQuantity)
				i.Delete("/", cartHandler.Remove)
				i.Post("/discount", cartHandler.ApplyDiscount)
				i.Delete("/discount", cartHandler.RemoveDiscount)
			})
		})

		v.With(checkoutLimiter.Middleware).Post("/checkout", checkoutHandler.Checkout)

		v.Get("/sales", saleHandler.List)
		v.Get("/sales/{id}", saleHandler.Get)
		v.Post("/sales/{id}/refund", saleHandler.Refund)

		v.Route("/customers", func(c chi.Router) {
			c.Get("/", customerHandler.List)
			c.Post("/", customerHandler.Create)
			c.Route("/{id}", func(i chi.Router) {
				i.Get("/", customerHandler.Get)
				i.Put("/", customerHandler.Update)
				i.Delete("/", customerHandler.Delete)
			})
		})

		v.Route("/stores", func(s chi.Router) {
			s.Get("/", storeHandler.List)
			s.Post("/", storeHandler.Create)
			s.Route("/{id}", func(i chi.Router) {
				i.Get("/", storeHandler.Get)
				i.Put("/", storeHandler.Update)
				i.Delete("/", storeHandler.Delete)
			})
		})
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-rootCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", server.Addr).Msg("pos api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("http server")
	}
	logger.Info().Msg("pos api stopped")
}

// seedDefaultStore makes sure a fresh deployment has a store to sell from.
func seedDefaultStore(svc *stores.Service, logger zerolog.Logger) {
	if len(svc.List()) > 0 {
		return
	}
	if _, err := svc.Create(stores.Store{Name: "Hermosa CBD", Currency: "EUR"}); err != nil {
		logger.Error().Err(err).Msg("seed default store")
	}
}
