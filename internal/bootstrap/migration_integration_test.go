//go:build integration

package bootstrap

// End-to-end migration runs against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/bootstrap/... -v

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/dto"
	"storefront/internal/infra"
	"storefront/internal/migrator"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/variant"
	"storefront/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type testEnv struct {
	cfg *config.Config
	db  *gorm.DB
	rdb *redis.Client
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("storefront_test"),
		tcPostgres.WithUsername("storefront"),
		tcPostgres.WithPassword("storefront"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                     "test",
		DatabaseURL:             pgURL,
		RedisURL:                rdURL,
		PricingCacheTTL:         time.Hour,
		MigrationConcurrency:    4,
		MigrationLockTTL:        time.Minute,
		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      time.Second,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	return &testEnv{cfg: cfg, db: db, rdb: rdb}
}

func TestMigrationPipeline(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	products := repository.NewProductRepository(env.db)

	var seeded []*model.Product
	for i := 0; i < 20; i++ {
		doc := fmt.Sprintf(`{"variants":[{"id":"s","price":-5,"stock":1,"note":"keep-%d"},{"id":"m","price":0,"stock":2}]}`, i)
		if i == 3 {
			// jsonb accepts it, the variant reader does not
			doc = `{"variants":{"id":"s"}}`
		}
		p := &model.Product{Name: fmt.Sprintf("tee-%d", i), BasePrice: decimal.NewFromInt(50), Variants: datatypes.JSON(doc)}
		require.NoError(t, products.Create(ctx, p))
		seeded = append(seeded, p)
	}

	// A cached pricing view that the run must drop.
	cacheKey := "pricing:" + seeded[0].ID.String()
	require.NoError(t, env.rdb.Set(ctx, cacheKey, `{}`, time.Hour).Err())

	mig, err := NewMigration(env.cfg, env.db, env.rdb)
	require.NoError(t, err)

	report, err := mig.Runner.Run(ctx, migrator.PassPricingAbsolute, migrator.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 19, report.Summary.Updated)
	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, seeded[3].ID, report.Summary.FailedIDs[0])

	got, err := products.FindByID(ctx, seeded[0].ID)
	require.NoError(t, err)
	doc, err := variant.Parse(got.Variants)
	require.NoError(t, err)
	assert.True(t, doc.Variants[0].Price.Equal(decimal.NewFromInt(45)))
	assert.True(t, doc.Variants[1].Price.Equal(decimal.NewFromInt(50)))
	assert.Contains(t, string(got.Variants), `"note": "keep-0"`, "unknown fields survive the rewrite")

	exists, err := env.rdb.Exists(ctx, cacheKey).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	history, total, err := repository.NewPriceChangeRepository(env.db).ListByProduct(ctx, seeded[0].ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, history, 2)

	failures, err := mig.DeadLetters.List(ctx, worker.QueueCatalogMigration, 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, string(migrator.ReasonMalformedDocument), failures[0].Reason)

	runs, err := mig.Runs.ListRecent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "partial_failure", runs[0].Status)

	// Rerun: nothing left to change, the malformed product still fails.
	again, err := mig.Runner.Run(ctx, migrator.PassPricingAbsolute, migrator.RunOptions{})
	require.NoError(t, err)
	assert.Zero(t, again.Summary.Updated)
	assert.Equal(t, 19, again.Summary.Skipped)
	assert.Equal(t, 1, again.Summary.Failed)

	backfill, err := mig.Runner.Run(ctx, migrator.PassDefaultVariant, migrator.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 19, backfill.Summary.Updated)
}

func TestRunLockIsExclusive(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	locker := migrator.NewRedisLocker(env.rdb)
	release, err := locker.Acquire(ctx, "lock:catalog_migration:pricing-absolute", time.Minute)
	require.NoError(t, err)

	mig, err := NewMigration(env.cfg, env.db, env.rdb)
	require.NoError(t, err)
	_, err = mig.Runner.Run(ctx, migrator.PassPricingAbsolute, migrator.RunOptions{})
	assert.ErrorIs(t, err, migrator.ErrRunLocked)

	_, err = mig.Runner.Run(ctx, migrator.PassPricingAbsolute, migrator.RunOptions{DryRun: true})
	assert.NoError(t, err, "dry runs ignore the lock")

	release()
	_, err = mig.Runner.Run(ctx, migrator.PassPricingAbsolute, migrator.RunOptions{})
	assert.NoError(t, err)
}

func TestLockReleaseKeepsForeignLock(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	locker := migrator.NewRedisLocker(env.rdb)
	key := "lock:test"

	release, err := locker.Acquire(ctx, key, 50*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	// Our lock expired and somebody else took it.
	_, err = locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	release()
	exists, err := env.rdb.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestPricingCacheGeneration(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	cache := service.NewRedisPricingCache(env.rdb, time.Minute)
	id := uuid.New()

	_, gen, ok := cache.Get(ctx, id)
	require.False(t, ok)
	assert.Zero(t, gen)

	// Invalidated between the miss and the store: the store is dropped.
	require.NoError(t, cache.Invalidate(ctx, id))
	cache.Set(ctx, id, gen, &dto.PricingResponse{ProductID: "stale"})
	_, gen, ok = cache.Get(ctx, id)
	require.False(t, ok)
	assert.Equal(t, int64(1), gen)

	cache.Set(ctx, id, gen, &dto.PricingResponse{ProductID: "fresh"})
	resp, _, ok := cache.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, "fresh", resp.ProductID)
}
