package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ThinhVo0/BT4-CNPMM/internal/config"
	"github.com/ThinhVo0/BT4-CNPMM/internal/event"
	handler "github.com/ThinhVo0/BT4-CNPMM/internal/handler/http"
	"github.com/ThinhVo0/BT4-CNPMM/internal/scheduler"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/database"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/health"
	pkgkafka "github.com/ThinhVo0/BT4-CNPMM/pkg/kafka"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/middleware"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/tracing"
)

// idempotencyPrefix namespaces processed event ids in Redis.
const idempotencyPrefix = "search:events:"

// App wires together all dependencies and runs the search service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	core           *Core
	scheduler      *scheduler.Scheduler
	consumers      []*pkgkafka.Consumer
	producer       *pkgkafka.Producer
	redis          *redis.Client
	limiter        *middleware.IPLimiter
	httpServer     *http.Server
	shutdownTracer tracing.Shutdown
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTracer = shutdownTracer

	core, err := NewCore(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTracer(ctx)
		return nil, err
	}
	a.core = core

	a.scheduler, err = scheduler.New(cfg.ReindexSchedule, core.Search, logger, cfg.ReindexTimeout)
	if err != nil {
		_ = a.closeAll(ctx)
		return nil, err
	}

	if cfg.RedisEnabled {
		a.redis, err = database.NewRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			_ = a.closeAll(ctx)
			return nil, fmt.Errorf("init redis: %w", err)
		}
	}

	if cfg.KafkaEnabled {
		a.initKafka()
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("search_engine", core.Engine.Ping)
	healthHandler.Register("catalog", core.Store.Ping)
	if a.redis != nil {
		healthHandler.RegisterOptional("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
	}

	if cfg.SuggestLimitEnabled() {
		a.limiter = middleware.NewIPLimiter(cfg.SuggestRPS, cfg.SuggestBurst, 5*time.Minute)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(handler.RouterConfig{
		ServiceName:     config.ServiceName,
		Search:          core.Search,
		Catalog:         core.Catalog,
		Reindexer:       a.scheduler,
		Health:          healthHandler,
		Logger:          logger,
		TokenValidator:  a.tokenValidator(),
		SuggestLimiter:  a.limiter,
		CORS:            cors,
		PprofCIDRs:      cfg.PprofAllowedCIDRs,
		RequestTimeout:  cfg.RequestTimeout,
		CatalogCacheTTL: cfg.CatalogCacheTTL,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// initKafka builds one consumer per product topic. Every consumer shares the
// idempotency store and forwards failures to the topic's dead-letter topic.
func (a *App) initKafka() {
	cfg := a.cfg
	metrics := pkgkafka.NewMetrics(prometheus.DefaultRegisterer)
	a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, a.logger, metrics)

	var store pkgkafka.IdempotencyStore
	if a.redis != nil {
		store = pkgkafka.NewRedisIdempotencyStore(a.redis, idempotencyPrefix, cfg.IdempotencyTTL)
	} else {
		store = pkgkafka.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}

	eventConsumer := event.NewConsumer(a.core.Search, a.logger)
	handle := pkgkafka.IdempotentHandler(store, eventConsumer.Handle, a.logger)

	for _, topic := range event.Topics() {
		c := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:    cfg.KafkaBrokers,
			GroupID:    cfg.KafkaGroupID,
			Topic:      topic,
			MaxRetries: cfg.KafkaRetries,
		}, handle, a.logger,
			pkgkafka.WithDeadLetter(a.producer),
			pkgkafka.WithMetrics(metrics),
		)
		a.consumers = append(a.consumers, c)
	}
	a.logger.Info("kafka consumers initialized",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.Int("topic_count", len(a.consumers)),
	)
}

// tokenValidator rejects every token when no admin secret is configured.
func (a *App) tokenValidator() middleware.TokenValidator {
	if a.cfg.AdminJWTSecret == "" {
		a.logger.Warn("ADMIN_JWT_SECRET not set; admin endpoints are disabled")
		return func(string) (*middleware.Claims, error) {
			return nil, errors.New("admin access is not configured")
		}
	}
	return middleware.HMACValidator(a.cfg.AdminJWTSecret)
}

// Run starts the HTTP server, Kafka consumers and reindex schedule, blocking
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	if a.limiter != nil {
		go a.limiter.Run(ctx)
	}
	a.scheduler.Start()

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("component failed", slog.String("error", runErr.Error()))
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	errs = append(errs, a.closeAll(ctx))

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeAll releases everything NewApp opened, in reverse order.
func (a *App) closeAll(ctx context.Context) error {
	var errs []error
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.logger.Error("scheduler stop error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.core != nil {
		errs = append(errs, a.core.Close(ctx))
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush traces: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Handler exposes the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}
