package repository

import (
	"context"

	"storefront/internal/model"

	"gorm.io/gorm"
)

type MigrationRunRepository interface {
	Create(ctx context.Context, run *model.MigrationRun) error
	Finish(ctx context.Context, run *model.MigrationRun) error
	ListRecent(ctx context.Context, limit int) ([]model.MigrationRun, error)
}

type migrationRunRepo struct{ db *gorm.DB }

func NewMigrationRunRepository(db *gorm.DB) MigrationRunRepository {
	return &migrationRunRepo{db: db}
}

func (r *migrationRunRepo) Create(ctx context.Context, run *model.MigrationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *migrationRunRepo) Finish(ctx context.Context, run *model.MigrationRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *migrationRunRepo) ListRecent(ctx context.Context, limit int) ([]model.MigrationRun, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var runs []model.MigrationRun
	err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
