// Package bootstrap is the composition root shared by the server and the
// migrate CLI.
package bootstrap

import (
	"storefront/internal/config"
	"storefront/internal/infra"
	"storefront/internal/migrator"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/worker"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Migration bundles what both binaries need to run or inspect migrations.
type Migration struct {
	Runner      *migrator.Runner
	DeadLetters *worker.DeadLetters
	Runs        repository.MigrationRunRepository
}

// NewMigration wires the runner with every side channel enabled: audit rows,
// run records, pricing cache invalidation, the DLQ, the run lock, the
// storage breaker and the write throttle.
func NewMigration(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Migration, error) {
	runs := repository.NewMigrationRunRepository(db)
	dlq := worker.NewDeadLetters(rdb)

	runner, err := migrator.NewRunner(migrator.Deps{
		Products:     repository.NewProductRepository(db),
		PriceChanges: repository.NewPriceChangeRepository(db),
		Runs:         runs,
		Cache:        service.NewRedisPricingCache(rdb, cfg.PricingCacheTTL),
		Failures:     dlq,
		Lock:         migrator.NewRedisLocker(rdb),
		Breaker: infra.NewBreaker(infra.BreakerConfig{
			FailureThreshold: cfg.BreakerFailureThreshold,
			OpenTimeout:      cfg.BreakerOpenTimeout,
		}),
		Limiter:     WriteLimiter(cfg.MigrationWritesPerSecond),
		Concurrency: cfg.MigrationConcurrency,
		LockTTL:     cfg.MigrationLockTTL,
	})
	if err != nil {
		return nil, err
	}
	return &Migration{Runner: runner, DeadLetters: dlq, Runs: runs}, nil
}

// WriteLimiter returns nil (unthrottled) for a non-positive rate.
func WriteLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
