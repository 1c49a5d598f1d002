package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/bookslots/libs/config"
	"github.com/md-rashed-zaman/bookslots/libs/db"
	"github.com/md-rashed-zaman/bookslots/libs/httpx"
	"github.com/md-rashed-zaman/bookslots/libs/kafkax"
	otelx "github.com/md-rashed-zaman/bookslots/libs/otel"
	"github.com/md-rashed-zaman/bookslots/libs/runtime"
	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/cache"
	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/consumer"
	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/handlers"
	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/metrics"
	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	loc, err := config.Location("TIMEZONE", "UTC")
	if err != nil {
		panic(err)
	}
	m := metrics.NewAvailabilityMetrics(nil)

	var (
		store  availability.Store
		checks []runtime.ReadyCheck
	)
	if dbURL := strings.TrimSpace(config.String("DATABASE_URL", "")); dbURL != "" {
		pool, err := db.Open(ctx, dbURL, db.Options{
			MaxConns: int32(config.Int("DB_MAX_CONNS", 10, 1)),
			ReadOnly: true,
		})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		store = storage.NewRepository(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	} else {
		logger.Warn("DATABASE_URL not set; serving from an empty in-memory store")
		store = availability.NewMemoryStore()
	}

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0, 0),
		})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	// Cached reads are only safe while booking events can invalidate them.
	brokers := strings.TrimSpace(config.String("KAFKA_BROKERS", ""))
	switch {
	case rdb != nil && brokers != "":
		cached := cache.New(store, rdb, cache.Config{
			TTL:    config.Seconds("CACHE_TTL_SECONDS", time.Minute),
			Prefix: config.String("CACHE_PREFIX", "avail"),
		}, logger, m)
		store = cached

		eventConsumer := consumer.New(logger, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topics:  config.List("KAFKA_CONSUME_TOPICS", strings.Join(consumer.DefaultTopics(), ",")),
		}, consumer.NewInvalidationHandler(cached, loc, logger), m)
		go eventConsumer.Run(ctx)

		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		logger.Info("availability cache enabled", "ttl", config.Seconds("CACHE_TTL_SECONDS", time.Minute).String())
	case rdb != nil:
		logger.Warn("KAFKA_BROKERS not set; availability cache disabled")
	}

	days := availability.NewDayIndex(store,
		availability.WithLocation(loc),
		availability.WithConcurrency(config.Int("DAY_FETCH_CONCURRENCY", 4, 1)),
		availability.WithLogger(logger),
		availability.WithObserver(m),
	)
	availabilityHandler := handlers.NewAvailabilityHandler(store, days, logger, m, handlers.Config{
		Location:    loc,
		DefaultDays: config.Int("DEFAULT_DAY_COUNT", 14, 1),
		MaxDays:     config.Int("MAX_DAY_COUNT", 60, 1),
	})

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120, 1)
	var limiter httpx.Limiter
	if rdb != nil {
		limiter = httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:availability"))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
	} else {
		limiter = httpx.NewMemoryRateLimiter(limitPerMinute, time.Minute)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	public := http.NewServeMux()
	availabilityHandler.Routes(public)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/v1/public/", httpx.Chain(public,
		httpx.WithRateLimit(limiter, logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)),
	))

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", ""),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", ""),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Seconds("CORS_MAX_AGE_SECONDS", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)),
	)
	handler = otelhttp.NewHandler(handler, "availability")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		logger.Error("availability service exited", "err", err)
	}
}
