package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bet-simulator-service/internal/advisory"
	"github.com/cypherlabdev/bet-simulator-service/internal/config"
	"github.com/cypherlabdev/bet-simulator-service/internal/gateway"
	httpHandler "github.com/cypherlabdev/bet-simulator-service/internal/handler/http"
	"github.com/cypherlabdev/bet-simulator-service/internal/market"
	"github.com/cypherlabdev/bet-simulator-service/internal/messaging"
	"github.com/cypherlabdev/bet-simulator-service/internal/notify"
	"github.com/cypherlabdev/bet-simulator-service/internal/observability"
	"github.com/cypherlabdev/bet-simulator-service/internal/oddscache"
	"github.com/cypherlabdev/bet-simulator-service/internal/repository"
	"github.com/cypherlabdev/bet-simulator-service/internal/service"
	"github.com/cypherlabdev/bet-simulator-service/internal/settlement"
)

const janitorInterval = time.Hour

// ledgerBackend is the storage the ledger service and settlement queue run on
type ledgerBackend struct {
	db          service.Database
	wallets     repository.WalletRepository
	bets        repository.BetRepository
	txns        repository.TransactionRepository
	outbox      repository.OutboxRepository
	idempotency repository.IdempotencyRepository
	queue       settlement.Queue
	readiness   []httpHandler.ReadinessCheck
	close       func()
}

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Initialize logger
	logger := observability.NewLogger(observability.LoggerConfig{
		Service: cfg.Service.Name,
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
	})
	logger.Info().
		Str("environment", cfg.Service.Environment).
		Str("ledger_driver", cfg.Ledger.Driver).
		Str("cache_driver", cfg.Cache.Driver).
		Msg("bet-simulator-service starting")

	// 3. Initialize metrics
	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Ledger storage
	backend, err := openLedger(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open ledger storage")
	}
	defer backend.close()

	// 5. Odds cache
	store, storeClose, err := openCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open odds cache")
	}
	defer storeClose()
	backend.readiness = append(backend.readiness, httpHandler.PingCheck("odds_cache", store))

	// 6. Remote odds gateway and market manager
	gw := gateway.NewClient(gateway.Config{
		BaseURL: cfg.OddsAPI.BaseURL,
		APIKey:  cfg.OddsAPI.APIKey,
		Regions: cfg.OddsAPI.Regions,
		Timeout: cfg.OddsAPI.Timeout,
	}, metrics, logger)

	fallback, err := market.LoadFallback()
	if err != nil {
		logger.Warn().Err(err).Msg("bundled fallback markets unavailable")
	}
	markets := market.NewManager(store, gw, fallback, market.Config{
		StaleWindow:    cfg.Cache.StaleWindow,
		RefreshTimeout: cfg.OddsAPI.Timeout,
		Sports:         cfg.OddsAPI.Sports,
	}, metrics, logger)

	// 7. Ledger service, settlement scheduling and notifications
	hub := notify.NewHub(nil, logger)
	enqueuer := settlement.NewEnqueuer(backend.queue, metrics, logger)

	ledger := service.NewLedgerService(
		backend.db,
		backend.wallets,
		backend.bets,
		backend.txns,
		backend.outbox,
		backend.idempotency,
		enqueuer,
		hub,
		metrics,
		logger,
	)

	wallet, err := ledger.InitializeWallet(ctx, cfg.Ledger.InitialBalance)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize wallet")
	}
	logger.Info().Str("balance", wallet.Balance.String()).Msg("wallet ready")

	scheduler := settlement.NewScheduler(enqueuer, ledger, ledger, gw, logger)
	if n, err := scheduler.ResumePending(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to resume pending settlements")
	} else {
		logger.Info().Int("bets", n).Msg("pending settlements resumed")
	}

	worker := settlement.NewWorker(backend.queue, scheduler, settlement.WorkerConfig{
		PollInterval: cfg.Settlement.PollInterval,
		Lease:        cfg.Settlement.Lease,
		BatchSize:    cfg.Settlement.BatchSize,
		Concurrency:  cfg.Settlement.Concurrency,
	}, logger)
	go worker.Start(ctx)
	logger.Info().Msg("settlement worker started")

	// 8. Outbox publisher
	var producer sarama.SyncProducer
	if cfg.Kafka.Enabled {
		producer, err = messaging.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create Kafka producer")
		}
		defer producer.Close()
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("kafka producer initialized")

		publisher := messaging.NewOutboxPublisher(backend.outbox, producer, metrics, logger)
		go publisher.Start(ctx)
		logger.Info().Msg("outbox publisher started")

		backend.readiness = append(backend.readiness, httpHandler.ProducerCheck(producer))
	}

	// 9. Advisory
	advisor := advisory.NewAdvisor(advisory.NewAnalysisCache(0), logger)

	go runJanitor(ctx, backend.idempotency, advisor.Cache(), logger)

	// 10. HTTP API
	router := httpHandler.NewRouter(httpHandler.Config{
		Ledger:    ledger,
		Markets:   markets,
		Advisor:   advisor,
		Websocket: hub.HandleWS,
		Readiness: backend.readiness,
		Metrics:   metrics,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// 11. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down gracefully...")

	// 12. Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	logger.Info().Msg("HTTP server stopped")

	cancel() // Stop worker, publisher and janitor
	worker.Wait()
	markets.Wait()
	hub.Close()

	logger.Info().Msg("shutdown complete")
}

func openLedger(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*ledgerBackend, error) {
	if cfg.Ledger.Driver == "memory" {
		ledger := repository.NewMemoryLedger()
		logger.Warn().Msg("using in-memory ledger; wallet and bets are lost on restart")
		return &ledgerBackend{
			db:          ledger,
			wallets:     ledger.Wallets(),
			bets:        ledger.Bets(),
			txns:        ledger.Transactions(),
			outbox:      ledger.Outbox(),
			idempotency: ledger.Idempotency(),
			queue:       settlement.NewMemoryQueue(nil),
			close:       func() {},
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info().Msg("database connection established")

	return &ledgerBackend{
		db:          pool,
		wallets:     repository.NewPostgresWalletRepository(pool, logger),
		bets:        repository.NewPostgresBetRepository(pool, logger),
		txns:        repository.NewPostgresTransactionRepository(pool, logger),
		outbox:      repository.NewPostgresOutboxRepository(pool, logger),
		idempotency: repository.NewPostgresIdempotencyRepository(pool, logger),
		queue:       repository.NewPostgresSettlementQueue(pool, logger),
		readiness:   []httpHandler.ReadinessCheck{httpHandler.PingCheck("database", pool)},
		close:       pool.Close,
	}, nil
}

func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (oddscache.Store, func(), error) {
	switch cfg.Cache.Driver {
	case "memory":
		return oddscache.NewMemoryStore(), func() {}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return oddscache.NewRedisStore(client, logger), func() { client.Close() }, nil

	default:
		open := oddscache.OpenSQLite
		target := cfg.Cache.SQLitePath
		if cfg.Cache.Driver == "postgres" {
			open = oddscache.OpenPostgres
			target = cfg.Database.URL
		}

		db, err := open(target)
		if err != nil {
			return nil, nil, err
		}
		store, err := oddscache.NewGormStore(db, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return store, closeFn, nil
	}
}

// runJanitor expires idempotency keys and stale advisory estimates
func runJanitor(ctx context.Context, keys repository.IdempotencyRepository, estimates *advisory.AnalysisCache, logger zerolog.Logger) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := keys.CleanupExpired(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("failed to clean up idempotency keys")
			}
			pruned := estimates.Prune()
			logger.Debug().
				Int64("idempotency_keys", deleted).
				Int("estimates", pruned).
				Msg("janitor run completed")
		}
	}
}
