package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/config"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/event"
	handler "github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/handler/http"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/manufacturer"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/repository"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/repository/postgres"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/saga"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/service"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/migrations"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/database"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/health"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/httpclient"
	pkgkafka "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/kafka"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/tracing"
)

// App wires together all dependencies and runs the vehicle sales service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	engine         *saga.Engine
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "vehicle-sales",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Kafka producer with connection validation and retry.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	orderRepo := postgres.NewOrderRepository(pool)
	stockRepo := postgres.NewStockRepository(pool)
	financeRepo := postgres.NewFinanceRepository(pool)
	dispatchRepo := postgres.NewDispatchRepository(pool)
	historyRepo := postgres.NewHistoryRepository(pool)
	journal := postgres.NewJournalRepository(pool)

	eventProducer := event.NewProducer(producer, logger)

	var notifier manufacturer.Notifier = manufacturer.NoopNotifier{}
	if cfg.ManufacturerAPIURL != "" {
		notifier = manufacturer.NewClient(cfg.ManufacturerAPIURL, httpclient.DefaultConfig(), logger)
		logger.Info("manufacturer API client configured", slog.String("url", cfg.ManufacturerAPIURL))
	}

	orderService := service.NewOrderService(orderRepo, historyRepo, eventProducer, logger)
	allocationService := service.NewAllocationService(orderRepo, stockRepo, historyRepo, notifier, eventProducer, logger)
	financeService := service.NewFinanceService(financeRepo, logger)
	dispatchService := service.NewDispatchService(dispatchRepo, logger)
	stockService := service.NewStockService(stockRepo, logger)

	activities := saga.NewServiceActivities(orderService, allocationService, financeService, dispatchService, logger)
	engine := saga.NewEngine(journal, activities, eventProducer, logger, saga.Config{
		Timeouts: saga.Timeouts{
			FinanceInit:     cfg.FinanceInitTimeout,
			FinanceDecision: cfg.FinanceDecisionTimeout,
			DispatchInit:    cfg.DispatchInitTimeout,
			Delivery:        cfg.DeliveryTimeout,
		},
		Retry: saga.DefaultRetryPolicy(),
	})

	// Resume sagas that were open when the previous process stopped.
	if err := engine.Recover(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("recover sagas: %w", err)
	}

	// Sweep for orders whose creation committed but whose saga never started
	// (a journal failure between the two) and start their sagas now.
	if err := adoptOrphanedOrders(ctx, orderRepo, engine, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("adopt orphaned orders: %w", err)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(orderService, stockService, allocationService, engine, healthHandler,
		handler.RouterConfig{
			JWTSecret:      cfg.JWTSecret,
			SignalRPS:      cfg.SignalRateLimit,
			SignalBurst:    cfg.SignalRateBurst,
			AllowedOrigins: cfg.AllowedOrigins,
			Environment:    cfg.Environment,
		}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		producer:       producer,
		engine:         engine,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Saga engine (park running sagas; they resume from the journal on restart)
// 3. Tracer (flush pending spans)
// 4. Kafka producer
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Park running sagas. Open sagas stay open in the journal.
	sagaCtx, sagaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer sagaCancel()
	if err := a.engine.Shutdown(sagaCtx); err != nil {
		a.logger.Error("saga engine shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 3. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// adoptOrphanedOrders starts sagas for PENDING orders that have no journal
// history. PENDING orders with a running or journaled saga (backorders,
// rejected finance rounds) are skipped by the engine.
func adoptOrphanedOrders(ctx context.Context, orders repository.OrderRepository, engine *saga.Engine, logger *slog.Logger) error {
	pending, err := orders.ListByStatus(ctx, domain.StatusPending)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}

	adopted := 0
	for _, o := range pending {
		started, err := engine.AdoptOrder(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("adopt order %s: %w", o.ID, err)
		}
		if started {
			adopted++
			logger.InfoContext(ctx, "orphaned order adopted", slog.String("order_id", o.ID))
		}
	}

	if adopted > 0 {
		logger.InfoContext(ctx, "orphaned order sweep complete", slog.Int("adopted", adopted))
	}
	return nil
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := producer.Ping(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
