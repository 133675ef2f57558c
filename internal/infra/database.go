package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection backed by pgx and applies the
// idempotent schema patches. GORM AutoMigrate is not used: the schema is
// owned by the SQL below so column types (decimal precision, jsonb) stay
// exactly as the catalog store expects.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := applySchemaPatches(db); err != nil {
		return nil, fmt.Errorf("schema patches: %w", err)
	}
	return db, nil
}

// applySchemaPatches runs DDL guarded by IF NOT EXISTS, so re-running on an
// already-patched database is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"create products", `
CREATE TABLE IF NOT EXISTS products (
  id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  name       TEXT NOT NULL,
  base_price DECIMAL(12,2) NOT NULL,
  base_stock INT NOT NULL DEFAULT 0,
  variants   JSONB,
  deleted    BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
		{"products.base_stock backfill", `ALTER TABLE products ADD COLUMN IF NOT EXISTS base_stock INT NOT NULL DEFAULT 0`},
		{"index products name", `CREATE INDEX IF NOT EXISTS idx_products_name ON products (name)`},
		// Partial index for the migration snapshot query.
		{"index products with variants", `
CREATE INDEX IF NOT EXISTS idx_products_with_variants
  ON products (created_at, id)
  WHERE deleted = false AND variants IS NOT NULL`},

		{"create variant_price_changes", `
CREATE TABLE IF NOT EXISTS variant_price_changes (
  id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  product_id   UUID NOT NULL REFERENCES products(id),
  run_id       UUID NOT NULL,
  variant_id   TEXT NOT NULL,
  pass         TEXT NOT NULL,
  price_before DECIMAL(12,2) NOT NULL,
  price_after  DECIMAL(12,2) NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
		{"index variant_price_changes product", `CREATE INDEX IF NOT EXISTS idx_variant_price_changes_product ON variant_price_changes (product_id)`},
		{"index variant_price_changes run", `CREATE INDEX IF NOT EXISTS idx_variant_price_changes_run ON variant_price_changes (run_id)`},

		{"create catalog_migration_runs", `
CREATE TABLE IF NOT EXISTS catalog_migration_runs (
  id          UUID PRIMARY KEY,
  pass        TEXT NOT NULL,
  dry_run     BOOLEAN NOT NULL DEFAULT false,
  status      TEXT NOT NULL DEFAULT 'running',
  inspected   INT NOT NULL DEFAULT 0,
  updated     INT NOT NULL DEFAULT 0,
  skipped     INT NOT NULL DEFAULT 0,
  failed      INT NOT NULL DEFAULT 0,
  failed_ids  TEXT[],
  last_error  TEXT,
  started_at  TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ
)`},
		{"index catalog_migration_runs pass", `CREATE INDEX IF NOT EXISTS idx_catalog_migration_runs_pass ON catalog_migration_runs (pass, started_at DESC)`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

// RunMigrations applies the schema patches to an already-open connection.
// Integration tests call it against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	return applySchemaPatches(db)
}
