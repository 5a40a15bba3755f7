// Package app assembles the service: configuration, datastores, the review
// workflow, and the HTTP server with graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/bookshelf-labs/bookshelf/internal/config"
	"github.com/bookshelf-labs/bookshelf/internal/event"
	handlerhttp "github.com/bookshelf-labs/bookshelf/internal/handler/http"
	"github.com/bookshelf-labs/bookshelf/internal/migrations"
	"github.com/bookshelf-labs/bookshelf/internal/repository/postgres"
	"github.com/bookshelf-labs/bookshelf/internal/service"
	"github.com/bookshelf-labs/bookshelf/internal/workflow"
	"github.com/bookshelf-labs/bookshelf/pkg/database"
	"github.com/bookshelf-labs/bookshelf/pkg/health"
	"github.com/bookshelf-labs/bookshelf/pkg/kafka"
	"github.com/bookshelf-labs/bookshelf/pkg/logger"
	"github.com/bookshelf-labs/bookshelf/pkg/metrics"
	"github.com/bookshelf-labs/bookshelf/pkg/middleware"
	"github.com/bookshelf-labs/bookshelf/pkg/tracing"
)

// App is the assembled service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server

	pool        *pgxpool.Pool
	cache       *redis.Client
	producer    *kafka.Producer
	stopTracing func(context.Context) error
}

// New builds the application from configuration. All external connections
// are established here; a failure leaves nothing half-started.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(log)

	stopTracing, err := tracing.InitTracer(ctx, cfg.TracerConfig())
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres.Pool(), log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := database.RunMigrations(ctx, pool, migrations.Files, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, cfg.ServiceName)

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// The cache is an optimization; start degraded rather than fail.
			log.Warn("redis unavailable, starting without book cache",
				slog.String("error", err.Error()))
			cache = nil
		}
	}

	bookRepo := postgres.NewBookRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)

	reg := metrics.Default()

	var producer *kafka.Producer
	workflowOpts := []workflow.Option{}
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(kafka.DefaultProducerConfig(cfg.Kafka.Brokers), log)
		workflowOpts = append(workflowOpts, workflow.WithNotifier(event.NewPublisher(producer)))
	}

	wf := workflow.New(reviewRepo, bookRepo, workflow.NewMetrics(reg), log, workflowOpts...)
	bookSvc := service.NewBookService(bookRepo, cache, cfg.Cache.BookTTL, log)

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if cache != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return cache.Ping(ctx).Err()
		})
	}
	if producer != nil {
		healthHandler.Register("kafka", producer.Ping)
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORS.AllowedOrigins

	router := handlerhttp.NewRouter(handlerhttp.RouterConfig{
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Metrics:     reg,
		Health:      healthHandler,
		CORS:        corsCfg,
		PprofCIDRs:  cfg.Pprof.AllowedCIDRs,
		Books:       handlerhttp.NewBookHandler(bookSvc, reviewRepo, log),
		Reviews:     handlerhttp.NewReviewHandler(wf, bookSvc, log),
		Demo:        handlerhttp.NewDemoHandler(log),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:         cfg,
		logger:      log,
		server:      server,
		pool:        pool,
		cache:       cache,
		producer:    producer,
		stopTracing: stopTracing,
	}, nil
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully within
// the configured timeout.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", slog.Duration("timeout", a.cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close failed", slog.String("error", err.Error()))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("redis close failed", slog.String("error", err.Error()))
		}
	}
	a.pool.Close()

	if err := a.stopTracing(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
	}

	a.logger.Info("shutdown complete")
	return nil
}
