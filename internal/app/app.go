// Package app wires the ledger's adapters and services from configuration.
// Both the API server and ledgerctl build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"coin-ledger/config"
	"coin-ledger/internal/adapter/push"
	pgStorage "coin-ledger/internal/adapter/storage/postgres"
	redisStorage "coin-ledger/internal/adapter/storage/redis"
	"coin-ledger/internal/core/ledger"
	"coin-ledger/internal/core/ports"
	"coin-ledger/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds the connected stores and the services built on them.
type App struct {
	Pool  *pgxpool.Pool
	Redis *goredis.Client

	Ledger    *service.LedgerServiceImpl
	Jobs      *service.JobServiceImpl
	Notifier  *service.NotificationService
	Audit     ports.AuditService
	Signature *service.HMACSignatureService
	Tokens    *service.JWTTokenService

	NonceStore     *redisStorage.NonceStore
	RateLimitStore *redisStorage.RateLimitStore
	HealthCheckers []ports.HealthChecker

	log zerolog.Logger
}

// New connects to PostgreSQL and Redis and builds every service. Call Close
// when done.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if cfg.Database.AutoMigrate {
		if err := pgStorage.RunMigrations(cfg.Database.MigrateURL(), log); err != nil {
			return nil, err
		}
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	sender, err := newPushSender(ctx, cfg.Push, log)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, err
	}

	balanceRepo := pgStorage.NewBalanceRepo(pool)
	batchRepo := pgStorage.NewBatchRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	keyRepo := pgStorage.NewIdempotencyRepo(pool)
	subRepo := pgStorage.NewSubscriptionRepo(pool)
	notificationRepo := pgStorage.NewNotificationRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	guard := service.NewIdempotencyGuard(
		redisStorage.NewIdempotencyCache(rdb),
		redisStorage.NewReservationStore(rdb),
		keyRepo,
		txRepo,
		cfg.Ledger,
		log,
	)

	notifier := service.NewNotificationService(notificationRepo, sender, cfg.Push.RatePerSecond, cfg.Push.Burst, log)

	ledgerSvc := service.NewLedgerService(
		ledger.NewEngine(),
		balanceRepo,
		batchRepo,
		txRepo,
		guard,
		transactor,
		notifier,
		cfg.Ledger,
		cfg.Jobs.WarningWindow,
		log,
	)

	jobs := service.NewJobService(
		ledgerSvc,
		balanceRepo,
		batchRepo,
		subRepo,
		redisStorage.NewCursorStore(rdb),
		notifier,
		cfg.Jobs,
		log,
	)

	return &App{
		Pool:           pool,
		Redis:          rdb,
		Ledger:         ledgerSvc,
		Jobs:           jobs,
		Notifier:       notifier,
		Audit:          service.NewAuditService(auditRepo, log),
		Signature:      service.NewHMACSignatureService(),
		Tokens:         service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer),
		NonceStore:     redisStorage.NewNonceStore(rdb),
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		log:            log,
	}, nil
}

// Close waits for queued notifications, then releases the connections.
func (a *App) Close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.Notifier.Wait(ctx); err != nil {
		a.log.Warn().Err(err).Msg("pending notifications dropped on shutdown")
	}
	if err := a.Redis.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing redis client")
	}
	a.Pool.Close()
}

func newPushSender(ctx context.Context, cfg config.PushConfig, log zerolog.Logger) (ports.PushSender, error) {
	if !cfg.Enabled {
		log.Info().Msg("push disabled, notifications are only logged")
		return push.NewLogSender(log), nil
	}
	sender, err := push.NewFCMSender(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialising push sender: %w", err)
	}
	return sender, nil
}
