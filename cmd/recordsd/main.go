// Package main is the entry point of recordsd, the records aggregation API.
//
// recordsd accepts attendance, assessment and financial records in atomic
// batches, and serves the aggregates derived from them: attendance
// percentage, weighted GPA and account balance.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campus-records/records-core/config"
	"github.com/campus-records/records-core/internal/application/command"
	"github.com/campus-records/records-core/internal/application/query"
	"github.com/campus-records/records-core/internal/domain/recordstore"
	"github.com/campus-records/records-core/internal/infrastructure/messaging"
	"github.com/campus-records/records-core/internal/infrastructure/persistence/memory"
	"github.com/campus-records/records-core/internal/infrastructure/persistence/postgres"
	"github.com/campus-records/records-core/internal/infrastructure/persistence/redis"
	"github.com/campus-records/records-core/internal/infrastructure/scheduler"
	"github.com/campus-records/records-core/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/campus-records/records-core/internal/interface/http"
	"github.com/campus-records/records-core/pkg/circuitbreaker"
	"github.com/campus-records/records-core/pkg/logger"
	"github.com/campus-records/records-core/pkg/retry"
	"github.com/campus-records/records-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting recordsd",
		slog.String("env", string(cfg.App.Environment)),
		slog.String("version", cfg.App.Version),
		slog.String("store", cfg.Records.StoreDriver),
		slog.String("timezone", cfg.App.Timezone),
	)
	timeutil.SetLocation(cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. RECORD STORE
	// ─────────────────────────────────────────────────────────────────────────
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing record store")
		store.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. AGGREGATE CACHE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache     *redis.Cache
		aggregateCache *redis.AggregateCache
	)
	if !cfg.Redis.Disabled {
		redisCache, err = redis.NewCache(redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("failed to connect to Redis, aggregate caching disabled", logger.Err(err))
		} else {
			defer redisCache.Close()
			breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			}, redis.IsCacheFailure)
			aggregateCache = redis.NewAggregateCache(redisCache, cfg.Records.CacheTTL, log, redis.WithBreaker(breaker))
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus")
		_ = eventBus.Close()
	}()

	if err := messaging.SubscribeAuditLog(eventBus, log); err != nil {
		return fmt.Errorf("failed to subscribe audit log: %w", err)
	}
	if aggregateCache != nil {
		if err := messaging.SubscribeCacheInvalidation(eventBus, aggregateCache); err != nil {
			return fmt.Errorf("failed to subscribe cache invalidation: %w", err)
		}
	}

	cmdConfig := command.DefaultConfig()
	cmdConfig.MaxBatchSize = cfg.Records.MaxBatchSize

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		schedConfig := scheduler.DefaultConfig()
		schedConfig.Logger = log
		schedConfig.JobTimeout = cfg.Scheduler.JobTimeout
		sched := scheduler.New(schedConfig)

		overdue := jobs.NewMarkOverdueJob(command.NewMarkOverdueHandler(store, eventBus, log, cmdConfig), log)
		if err := sched.Register(overdue, scheduler.Every(cfg.Scheduler.OverdueSweepInterval)); err != nil {
			return fmt.Errorf("failed to register job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	var cache query.AggregateCache
	if aggregateCache != nil {
		cache = aggregateCache
	}

	deps := httpapi.NewDependencies(store, eventBus, cache, log, cmdConfig)

	checker := httpapi.NewCompositeHealthChecker(cfg.App.Version)
	checker.AddCheck("store", true, httpapi.PingCheck(store))
	if redisCache != nil {
		checker.AddCheck("redis", false, httpapi.PingCheck(redisCache))
	}
	deps.HealthChecker = checker

	server := httpapi.NewServer(httpapi.Config{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		BodyLimit:    cfg.HTTP.BodyLimit,
	}, deps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	log.Info("starting graceful shutdown", slog.String("timeout", cfg.App.ShutdownTimeout.String()))
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Err(err))
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// openStore builds the configured record store. The PostgreSQL connection is
// retried while the database comes up, and pending migrations are applied.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (recordstore.Store, error) {
	if cfg.Records.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory record store, data is lost on exit")
		return memory.NewStore(), nil
	}

	log.Info("connecting to database")
	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL, cfg.Database.QueryTimeout)
	}, append(
		retry.DatabaseConnect(cfg.Database.ConnectAttempts, cfg.Database.ConnectDelay),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database not reachable, retrying",
				slog.Int("attempt", attempt),
				slog.String("delay", delay.String()),
				logger.Err(err),
			)
		}),
	)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	return postgres.NewStore(conn), nil
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Password = c.Password
	rc.DB = c.DB
	rc.PoolSize = c.PoolSize
	rc.MinIdleConns = c.MinIdleConns
	rc.DialTimeout = c.DialTimeout
	rc.ReadTimeout = c.ReadTimeout
	rc.WriteTimeout = c.WriteTimeout
	return rc
}

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    logger.Format(cfg.Observability.LogFormat),
		AddSource: cfg.Observability.AddSource,
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	log := logger.New(opts)
	slog.SetDefault(log)
	return log
}
